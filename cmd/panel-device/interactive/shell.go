// Package interactive provides the interactive command-line interface
// for the panel device.
package interactive

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/smartpanel-home/panel-go/pkg/attestation"
	"github.com/smartpanel-home/panel-go/pkg/cert"
	"github.com/smartpanel-home/panel-go/pkg/config"
	"github.com/smartpanel-home/panel-go/pkg/cred"
	"github.com/smartpanel-home/panel-go/pkg/discovery"
	"github.com/smartpanel-home/panel-go/pkg/service"
	"github.com/smartpanel-home/panel-go/pkg/tlv"
	"github.com/smartpanel-home/panel-go/pkg/wire"
)

// Deps wires the shell to the running device.
type Deps struct {
	Config     *config.Config
	Store      *cred.Store
	Dispatcher *service.Dispatcher
	Discovery  *discovery.Manager
}

// Shell handles interactive mode for panel-device.
type Shell struct {
	deps Deps
	rl   *readline.Instance

	// demoSeq distinguishes loopback commissioning channels.
	demoSeq int
}

// New creates a new interactive shell.
func New(deps Deps) (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "panel> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Shell{deps: deps, rl: rl}, nil
}

// Stdout returns a writer that coordinates with the readline input.
func (s *Shell) Stdout() io.Writer {
	return s.rl.Stdout()
}

// Run starts the interactive command loop.
func (s *Shell) Run(ctx context.Context, cancel context.CancelFunc) {
	defer s.rl.Close()

	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			s.printHelp()

		case "status", "s":
			s.cmdStatus()

		case "fabrics", "f":
			s.cmdFabrics()

		case "qr":
			s.cmdQR()

		case "code":
			s.cmdCode()

		case "window":
			s.cmdWindow(ctx, args)

		case "remove":
			s.cmdRemove(args)

		case "demo":
			s.cmdDemo(ctx)

		case "reset":
			s.cmdReset(args)

		case "quit", "exit", "q":
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			cancel()
			return

		default:
			fmt.Fprintf(s.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.rl.Stdout(), `
Panel Device Commands:
  Onboarding:
    qr                 - Show the QR onboarding code
    code               - Show the manual pairing code
    window open [min]  - Open the commissioning window (default 15 min)
    window close       - Close the commissioning window

  Fabrics:
    fabrics            - List committed fabrics
    remove <index>     - Remove a fabric by index
    demo               - Run a loopback commissioning attempt

  General:
    status             - Show device status
    reset --confirm    - Factory reset: wipe all credentials
    help               - Show this help
    quit               - Exit device`)
}

// cmdStatus shows the device status.
func (s *Shell) cmdStatus() {
	cfg := s.deps.Config
	fmt.Fprintln(s.rl.Stdout(), "\nDevice Status")
	fmt.Fprintln(s.rl.Stdout(), "-------------------------------------------")
	fmt.Fprintf(s.rl.Stdout(), "  Vendor/Product: 0x%04X/0x%04X\n", cfg.VendorID, cfg.ProductID)
	fmt.Fprintf(s.rl.Stdout(), "  Serial:         %s\n", cfg.SerialNumber)
	fmt.Fprintf(s.rl.Stdout(), "  Discriminator:  %d\n", cfg.Discriminator)
	fmt.Fprintf(s.rl.Stdout(), "  Discovery:      %s\n", s.deps.Discovery.State())
	fmt.Fprintf(s.rl.Stdout(), "  Fabrics:        %d\n", s.deps.Store.FabricCount())
	fmt.Fprintf(s.rl.Stdout(), "  Open sessions:  %d\n", s.deps.Dispatcher.Registry().ActiveCount())
	fmt.Fprintln(s.rl.Stdout())
}

// cmdFabrics lists the committed fabrics.
func (s *Shell) cmdFabrics() {
	fabrics := s.deps.Store.ListFabrics()
	if len(fabrics) == 0 {
		fmt.Fprintln(s.rl.Stdout(), "No fabrics committed")
		return
	}

	fmt.Fprintf(s.rl.Stdout(), "\nCommitted Fabrics (%d):\n", len(fabrics))
	fmt.Fprintln(s.rl.Stdout(), "-------------------------------------------")
	for _, rec := range fabrics {
		fmt.Fprintf(s.rl.Stdout(), "  [%d] fabric %016X node %016X\n", rec.Index, rec.FabricID, rec.NodeID)
		fmt.Fprintf(s.rl.Stdout(), "      compressed id %X\n", rec.RootPublicKeyFingerprint)
		fmt.Fprintf(s.rl.Stdout(), "      admin vendor 0x%04X, joined %s\n",
			rec.VendorID, rec.JoinedAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintln(s.rl.Stdout())
}

// cmdQR prints the QR onboarding code.
func (s *Shell) cmdQR() {
	code, err := s.deps.Config.OnboardingPayload().QRCode()
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.rl.Stdout(), "QR payload: %s\n", code)
}

// cmdCode prints the manual pairing code.
func (s *Shell) cmdCode() {
	code, err := s.deps.Config.OnboardingPayload().ManualPairingCode()
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.rl.Stdout(), "Manual pairing code: %s\n", discovery.FormatManualCode(code))
}

// cmdWindow opens or closes the commissioning window.
func (s *Shell) cmdWindow(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: window open [minutes] | window close")
		return
	}

	switch args[0] {
	case "open":
		duration := time.Duration(0)
		if len(args) > 1 {
			minutes, err := strconv.Atoi(args[1])
			if err != nil || minutes <= 0 {
				fmt.Fprintf(s.rl.Stdout(), "Invalid duration: %s\n", args[1])
				return
			}
			duration = time.Duration(minutes) * time.Minute
		}
		if err := s.deps.Discovery.OpenCommissioningWindow(ctx, duration); err != nil {
			fmt.Fprintf(s.rl.Stdout(), "Failed to open window: %v\n", err)
			return
		}
		fmt.Fprintln(s.rl.Stdout(), "Commissioning window open - device is now discoverable")

	case "close":
		if err := s.deps.Discovery.CloseCommissioningWindow(); err != nil {
			fmt.Fprintf(s.rl.Stdout(), "Failed to close window: %v\n", err)
			return
		}
		fmt.Fprintln(s.rl.Stdout(), "Commissioning window closed")

	default:
		fmt.Fprintln(s.rl.Stdout(), "Usage: window open [minutes] | window close")
	}
}

// cmdRemove removes a fabric by its 1-based index.
func (s *Shell) cmdRemove(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: remove <index>")
		fmt.Fprintln(s.rl.Stdout(), "  Use 'fabrics' to list fabric indices")
		return
	}

	index, err := strconv.ParseUint(args[0], 10, 8)
	if err != nil || index == 0 {
		fmt.Fprintf(s.rl.Stdout(), "Invalid fabric index: %s\n", args[0])
		return
	}

	// Grab the record first so the operational advertisement can be
	// withdrawn after removal.
	var removed *cred.FabricRecord
	for _, rec := range s.deps.Store.ListFabrics() {
		if rec.Index == uint8(index) {
			r := rec
			removed = &r
			break
		}
	}

	fields, err := encodeUintField(0, index)
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	resp := s.deps.Dispatcher.Dispatch("shell-admin", &wire.CommandRequest{
		ClusterID: wire.OperationalCredentialsClusterID,
		CommandID: wire.CmdRemoveFabric,
		Fields:    fields,
	})
	if !resp.IsSuccess() {
		fmt.Fprintf(s.rl.Stdout(), "Remove failed: %v\n", resp.Status)
		return
	}

	if removed != nil {
		name := (&discovery.OperationalInfo{
			CompressedFabricID: removed.RootPublicKeyFingerprint,
			NodeID:             removed.NodeID,
		}).InstanceName()
		if err := s.deps.Discovery.RemoveFabric(name); err != nil {
			fmt.Fprintf(s.rl.Stdout(), "Warning: advertisement not withdrawn: %v\n", err)
		}
	}
	fmt.Fprintf(s.rl.Stdout(), "Fabric %d removed\n", index)
}

// cmdReset wipes all credentials and fabric records.
func (s *Shell) cmdReset(args []string) {
	if len(args) == 0 || args[0] != "--confirm" {
		fmt.Fprintln(s.rl.Stdout(), "Factory reset wipes all fabrics and the attestation key.")
		fmt.Fprintln(s.rl.Stdout(), "Run 'reset --confirm' to proceed.")
		return
	}

	if err := s.deps.Store.FactoryReset(); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Factory reset failed: %v\n", err)
		return
	}
	s.deps.Dispatcher.Registry().Close()
	s.deps.Discovery.Stop()
	fmt.Fprintln(s.rl.Stdout(), "Factory reset complete")
}

// cmdDemo runs a full loopback commissioning attempt: the shell plays
// commissioner against the device's own dispatcher.
func (s *Shell) cmdDemo(ctx context.Context) {
	s.demoSeq++
	channel := fmt.Sprintf("demo-%d", s.demoSeq)
	out := s.rl.Stdout()

	dispatch := func(cmd uint8, fields []byte) (wire.CommandResponse, bool) {
		resp := s.deps.Dispatcher.Dispatch(channel, &wire.CommandRequest{
			ClusterID: wire.OperationalCredentialsClusterID,
			CommandID: cmd,
			Fields:    fields,
		})
		if !resp.IsSuccess() {
			fmt.Fprintf(out, "Command 0x%02X failed: %v\n", cmd, resp.Status)
			return resp, false
		}
		return resp, true
	}

	for _, ct := range []wire.CertificateChainType{wire.CertificateChainTypeDAC, wire.CertificateChainTypePAI} {
		fields, err := encodeUintField(0, uint64(ct))
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			return
		}
		if _, ok := dispatch(wire.CmdCertificateChainRequest, fields); !ok {
			return
		}
		fmt.Fprintf(out, "  %v certificate served\n", ct)
	}

	nonce := make([]byte, attestation.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	fields, err := encodeBytesField(0, nonce)
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	if _, ok := dispatch(wire.CmdAttestationRequest, fields); !ok {
		return
	}
	fmt.Fprintln(out, "  attestation signed")

	if _, err := rand.Read(nonce); err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	fields, err = encodeBytesField(0, nonce)
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	resp, ok := dispatch(wire.CmdCSRRequest, fields)
	if !ok {
		return
	}
	csrPayload, err := csrFromResponse(resp.Payload)
	if err != nil {
		fmt.Fprintf(out, "CSR decode failed: %v\n", err)
		return
	}
	fmt.Fprintln(out, "  operational CSR issued")

	fabricID := randomID()
	nodeID := randomID()
	ca, err := cert.NewCommissionerCA(fabricID)
	if err != nil {
		fmt.Fprintf(out, "Commissioner CA failed: %v\n", err)
		return
	}
	noc, err := ca.SignCSR(csrPayload, fabricID, nodeID)
	if err != nil {
		fmt.Fprintf(out, "NOC issuance failed: %v\n", err)
		return
	}

	fields, err = encodeBytesField(0, ca.RootCertificate())
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	if _, ok := dispatch(wire.CmdAddTrustedRootCert, fields); !ok {
		return
	}
	fmt.Fprintln(out, "  trusted root installed")

	ipk := make([]byte, 16)
	if _, err := rand.Read(ipk); err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	fields, err = encodeAddNOCFields(noc, ipk, s.deps.Config.VendorID)
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	if _, ok := dispatch(wire.CmdAddNOC, fields); !ok {
		return
	}

	fabrics := s.deps.Store.ListFabrics()
	rec := fabrics[len(fabrics)-1]
	fmt.Fprintf(out, "Commissioned: fabric %016X node %016X at index %d\n",
		rec.FabricID, rec.NodeID, rec.Index)

	if err := s.deps.Discovery.AddFabric(ctx, &discovery.OperationalInfo{
		CompressedFabricID: rec.RootPublicKeyFingerprint,
		NodeID:             rec.NodeID,
		Port:               s.deps.Config.Port,
	}); err != nil {
		fmt.Fprintf(out, "Warning: operational advertise failed: %v\n", err)
	}
}

// csrFromResponse pulls the CSR out of a CSRResponse payload.
func csrFromResponse(payload []byte) ([]byte, error) {
	fv, err := wire.Normalize(payload)
	if err != nil {
		return nil, err
	}
	elements, ok := fv.BytesField(0, 0)
	if !ok {
		return nil, fmt.Errorf("response carries no element block")
	}
	el, err := attestation.DecodeCSRElements(elements)
	if err != nil {
		return nil, err
	}
	return el.CSRPayload, nil
}

func encodeBytesField(tag uint8, value []byte) ([]byte, error) {
	w := tlv.NewWriter()
	w.StartStructure(tlv.Anonymous())
	w.PutBytes(tlv.ContextTag(tag), value)
	w.EndContainer()
	return w.Bytes()
}

func encodeUintField(tag uint8, value uint64) ([]byte, error) {
	w := tlv.NewWriter()
	w.StartStructure(tlv.Anonymous())
	w.PutUint(tlv.ContextTag(tag), value)
	w.EndContainer()
	return w.Bytes()
}

func encodeAddNOCFields(noc, ipk []byte, adminVendorID uint16) ([]byte, error) {
	w := tlv.NewWriter()
	w.StartStructure(tlv.Anonymous())
	w.PutBytes(tlv.ContextTag(0), noc)
	w.PutBytes(tlv.ContextTag(2), ipk)
	w.PutUint(tlv.ContextTag(3), 112233)
	w.PutUint(tlv.ContextTag(4), uint64(adminVendorID))
	w.EndContainer()
	return w.Bytes()
}

func randomID() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return uint64(time.Now().UnixNano())
	}
	// Avoid the reserved zero id.
	return binary.BigEndian.Uint64(b[:]) | 1
}
