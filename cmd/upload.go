// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Thermoquad/fwu/pkg/bootstrap"
	"github.com/Thermoquad/fwu/pkg/session"
)

var (
	uploadEncoding   bootstrap.Encoding
	uploadVerify     bool
	uploadDecompress bool
	uploadTUI        bool

	writeDevice = deviceFlag{name: "emmc", dev: bootstrap.DeviceEMMC}
	writeVerify bool
)

// deviceFlag is a boot device name, validated when the flag is parsed
type deviceFlag struct {
	name string
	dev  uint32
}

var _ pflag.Value = (*deviceFlag)(nil)

func (d *deviceFlag) String() string { return d.name }
func (d *deviceFlag) Type() string   { return "device" }

func (d *deviceFlag) Set(s string) error {
	dev, err := session.ParseDevice(s)
	if err != nil {
		return err
	}
	d.name, d.dev = s, dev
	return nil
}

var uploadCmd = &cobra.Command{
	Use:   "upload FILE",
	Short: "Upload a file into the device download buffer",
	Long: `Upload a file with SEND and DATA requests in chunks of 256 bytes.

The encoding defaults to binary in the update applet and on platforms whose
boot ROM accepts it, hex otherwise. --verify and --decompress require the
update applet.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		return withDevice(cmd, func(ctx context.Context, s *session.Session) error {
			opts := bootstrap.TransferOptions{
				Encoding:   s.UploadEncoding(),
				VerifyHash: uploadVerify,
				Decompress: uploadDecompress,
			}
			if cmd.Flags().Changed("encoding") {
				opts.Encoding = uploadEncoding
			}
			out, err := runUpload(ctx, s, args[0], func(ctx context.Context, progress func(bootstrap.Progress)) (*bootstrap.Outcome, error) {
				opts.Progress = progress
				return s.Upload(ctx, data, opts)
			})
			if err != nil {
				return err
			}
			printOutcome(out)
			return nil
		})
	},
}

var appletCmd = &cobra.Command{
	Use:   "applet [FILE]",
	Short: "Load the update applet",
	Long: `Upload the update applet to the boot ROM, authenticate it and wait for it
to answer. Without FILE the image is taken from the applet directory of the
config file.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDevice(cmd, func(ctx context.Context, s *session.Session) error {
			path := ""
			if len(args) > 0 {
				path = args[0]
			} else {
				p := s.Platform()
				path = cfg.AppletPath(p.Family, p.AppletImage)
			}
			image, err := os.ReadFile(path)
			if err != nil {
				return err
			}

			var info *session.PlatformInfo
			_, err = runUpload(ctx, s, path, func(ctx context.Context, progress func(bootstrap.Progress)) (*bootstrap.Outcome, error) {
				var lerr error
				info, lerr = s.LoadApplet(ctx, image, progress)
				return nil, lerr
			})
			if err != nil {
				return err
			}
			fmt.Printf("Applet running: %s\n", info)
			return nil
		})
	},
}

var writeFIPCmd = &cobra.Command{
	Use:   "write-fip [FILE]",
	Short: "Write a FIP to a boot device",
	Long: `Write the download buffer as a FIP to the boot device. With FILE, the file
is uploaded first. Requires the update applet.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWrite(cmd, args, func(ctx context.Context, s *session.Session, dev uint32) error {
			return s.WriteFIP(ctx, dev, writeVerify)
		})
	},
}

var writeImageCmd = &cobra.Command{
	Use:   "write-image [FILE]",
	Short: "Write a raw image to a boot device",
	Long: `Write the download buffer as a raw flash image to the boot device. With FILE,
the file is uploaded first. Requires the update applet.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWrite(cmd, args, func(ctx context.Context, s *session.Session, dev uint32) error {
			return s.WriteImage(ctx, dev, writeVerify)
		})
	},
}

var bindCmd = &cobra.Command{
	Use:   "bind",
	Short: "Re-encrypt the FIP in the download buffer with the device key",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDevice(cmd, func(ctx context.Context, s *session.Session) error {
			if err := s.Bind(ctx); err != nil {
				return err
			}
			fmt.Println("FIP bound to device")
			return nil
		})
	},
}

func init() {
	uploadCmd.Flags().Var(&uploadEncoding, "encoding", "DATA encoding: hex or binary (default depends on stage)")
	uploadCmd.Flags().BoolVar(&uploadVerify, "verify", false, "Compare the device SHA-256 of the upload")
	uploadCmd.Flags().BoolVar(&uploadDecompress, "decompress", false, "Gunzip the upload on the device")
	uploadCmd.Flags().BoolVar(&uploadTUI, "tui", false, "Show a progress view")
	appletCmd.Flags().BoolVar(&uploadTUI, "tui", false, "Show a progress view")

	for _, c := range []*cobra.Command{writeFIPCmd, writeImageCmd} {
		c.Flags().Var(&writeDevice, "dev", "Boot device: emmc, qspi or sdmmc")
		c.Flags().BoolVar(&writeVerify, "verify", false, "Read back and verify after writing")
		c.Flags().BoolVar(&uploadTUI, "tui", false, "Show a progress view")
	}

	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(appletCmd)
	rootCmd.AddCommand(writeFIPCmd)
	rootCmd.AddCommand(writeImageCmd)
	rootCmd.AddCommand(bindCmd)
}

// runWrite optionally uploads args[0] and then performs write
func runWrite(cmd *cobra.Command, args []string, write func(ctx context.Context, s *session.Session, dev uint32) error) error {
	var data []byte
	if len(args) > 0 {
		var err error
		if data, err = os.ReadFile(args[0]); err != nil {
			return err
		}
	}

	return withDevice(cmd, func(ctx context.Context, s *session.Session) error {
		if err := requireApplet(s, "write"); err != nil {
			return err
		}
		if data != nil {
			opts := bootstrap.TransferOptions{Encoding: s.UploadEncoding(), VerifyHash: true}
			out, err := runUpload(ctx, s, args[0], func(ctx context.Context, progress func(bootstrap.Progress)) (*bootstrap.Outcome, error) {
				opts.Progress = progress
				return s.Upload(ctx, data, opts)
			})
			if err != nil {
				return err
			}
			printOutcome(out)
		}

		fmt.Printf("Writing to %s...\n", writeDevice.name)
		if err := write(ctx, s, writeDevice.dev); err != nil {
			return err
		}
		fmt.Println("Write complete")
		return nil
	})
}

// requireApplet fails unless the update applet is running, so nothing is
// uploaded for a write the device cannot perform
func requireApplet(s *session.Session, op string) error {
	if st := s.Stage(); st != session.StageUpdateApplet {
		return &session.WrongStageError{Op: op, Stage: st, Want: []session.Stage{session.StageUpdateApplet}}
	}
	return nil
}

// runUpload runs job with either the progress TUI or a plain progress line
func runUpload(ctx context.Context, s *session.Session, name string,
	job func(ctx context.Context, progress func(bootstrap.Progress)) (*bootstrap.Outcome, error)) (*bootstrap.Outcome, error) {
	var out *bootstrap.Outcome
	if uploadTUI {
		err := runTransferTUI(ctx, "FWU - UPLOAD", name, s.Engine().Statistics(),
			func(ctx context.Context, progress func(bootstrap.Progress)) error {
				var err error
				out, err = job(ctx, progress)
				return err
			})
		return out, err
	}

	lastPct := -1
	out, err := job(ctx, func(p bootstrap.Progress) {
		pct := int(p.Percentage)
		if pct/10 == lastPct/10 && p.Phase == bootstrap.PhaseData {
			return
		}
		lastPct = pct
		fmt.Fprintf(os.Stderr, "\r%-12s %3d%% %d/%d bytes", p.Phase, pct, p.BytesSent, p.TotalBytes)
		if p.Phase == bootstrap.PhaseComplete {
			fmt.Fprintln(os.Stderr)
		}
	})
	if err != nil && lastPct >= 0 {
		fmt.Fprintln(os.Stderr)
	}
	return out, err
}

func printOutcome(out *bootstrap.Outcome) {
	if out == nil {
		return
	}
	fmt.Printf("Uploaded %d bytes in %d chunks (%s, %s)\n",
		out.BytesSent, out.Chunks, out.Elapsed.Truncate(time.Millisecond), out.Status)
	if out.DeviceDigest != nil {
		fmt.Printf("SHA-256: %x (verified)\n", out.DeviceDigest)
	}
	if out.DecompressStatus != "" {
		fmt.Printf("Device: %s, %d bytes\n", out.DecompressStatus, out.DecompressedSize)
	}
}
