package main

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/muurk/switcher/internal/protocol"
	"github.com/muurk/switcher/internal/ui"
)

var decodeLayout string

func init() {
	decodeCmd.Flags().StringVar(&decodeLayout, "layout", "auth", "Tail layout of TCP packets: short, auth or login")
	rootCmd.AddCommand(decodeCmd)
}

var decodeCmd = &cobra.Command{
	Use:   "decode [hex...]",
	Short: "Decode captured beacons and packets",
	Long: `Decode hex captures of broadcast beacons or TCP packets.

Each argument, or each line of standard input when no arguments are
given, is one capture. Spaces and colons are ignored. Datagrams of a
known beacon size are decoded as beacons; anything else is parsed as a
signed packet and its checksums are verified.`,
	Example: `  switcher decode fef0a5000232a100...
  cat captures.txt | switcher decode --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		layout, err := parseLayout(decodeLayout)
		if err != nil {
			return err
		}
		if len(args) == 0 {
			if args, err = readLines(cmd.InOrStdin()); err != nil {
				return err
			}
		}

		p := printer(cmd)
		var decoded []capture
		for _, arg := range args {
			c := decodeCapture(arg, layout)
			if jsonOutput {
				decoded = append(decoded, c)
				continue
			}
			if c.Error != "" {
				p.Warning("Not decoded", ui.D("Input", arg), ui.D("Error", c.Error))
				continue
			}
			p.Success(c.title(), c.details()...)
			p.Println(hex.Dump(c.data))
		}
		if jsonOutput {
			return printJSON(cmd, decoded)
		}
		return nil
	},
}

// capture is the result of decoding one hex capture
type capture struct {
	Kind   string           `json:"kind"`
	Size   int              `json:"size"`
	Beacon *protocol.Beacon `json:"beacon,omitempty"`
	Packet *protocol.Packet `json:"packet,omitempty"`
	Signed bool             `json:"signed,omitempty"`
	Error  string           `json:"error,omitempty"`

	data      []byte
	verifyErr error
}

func decodeCapture(s string, layout protocol.Layout) capture {
	data, err := hex.DecodeString(strings.NewReplacer(" ", "", ":", "", "\t", "").Replace(s))
	if err != nil {
		return capture{Kind: "invalid", Error: err.Error()}
	}
	c := capture{Size: len(data), data: data}

	if protocol.IsValidBeacon(data) {
		c.Kind = "beacon"
		c.Beacon, err = protocol.DecodeBeacon(data, "")
		if err != nil {
			c.Error = err.Error()
		}
		return c
	}

	c.Kind = "packet"
	c.Packet, err = protocol.Parse(data, layout)
	if err != nil {
		c.Error = err.Error()
		return c
	}
	c.verifyErr = protocol.Verify(data, []byte(protocol.SharedKey))
	c.Signed = c.verifyErr == nil
	return c
}

func (c capture) title() string {
	if c.Beacon != nil {
		return fmt.Sprintf("Beacon (%d bytes)", c.Size)
	}
	return fmt.Sprintf("Packet (%d bytes)", c.Size)
}

func (c capture) details() []ui.Detail {
	if b := c.Beacon; b != nil {
		details := []ui.Detail{
			ui.D("Device", b.ID),
			ui.D("Name", b.Name),
			ui.D("Family", b.Family),
			ui.D("Reported IP", b.ReportedIP),
		}
		return append(details, ui.StatusDetails(ui.BeaconStatus(b))...)
	}

	pkt := c.Packet
	signature := "valid"
	if c.verifyErr != nil {
		signature = c.verifyErr.Error()
	}
	return []ui.Detail{
		ui.D("Version", fmt.Sprintf("%x", pkt.Version)),
		ui.D("Command", fmt.Sprintf("%x", pkt.Command)),
		ui.D("Session", pkt.Session),
		ui.D("Device", pkt.DeviceID),
		ui.D("Timestamp", pkt.Timestamp),
		ui.D("Payload", hex.EncodeToString(pkt.Payload)),
		ui.D("Signature", signature),
	}
}

func parseLayout(s string) (protocol.Layout, error) {
	for _, l := range []protocol.Layout{protocol.LayoutShort, protocol.LayoutAuth, protocol.LayoutLogin} {
		if strings.EqualFold(l.String(), s) {
			return l, nil
		}
	}
	return 0, fmt.Errorf("unknown layout %q: use short, auth or login", s)
}

// readLines returns the non-empty lines of r
func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}
