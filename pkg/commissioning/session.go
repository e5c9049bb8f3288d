package commissioning

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"crypto/x509"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/smartpanel-home/panel-go/pkg/attestation"
	"github.com/smartpanel-home/panel-go/pkg/cert"
	"github.com/smartpanel-home/panel-go/pkg/cred"
	"github.com/smartpanel-home/panel-go/pkg/failsafe"
	"github.com/smartpanel-home/panel-go/pkg/log"
)

// maxRootCertSize bounds an AddTrustedRootCertificate payload.
const maxRootCertSize = 1024

// Config tunes session construction.
type Config struct {
	// Window is the fail-safe window. Zero selects
	// failsafe.DefaultWindow.
	Window time.Duration

	// Logger receives commissioning state-change events. Nil disables
	// logging.
	Logger log.Logger

	// ChannelID identifies the authenticated channel owning this
	// session, for log correlation only.
	ChannelID string
}

// Session is the state of one commissioning attempt. Exactly one
// session is active per authenticated channel; the session registry in
// the service layer enforces that. All methods are safe for concurrent
// use, though a single channel invokes them sequentially.
type Session struct {
	mu sync.Mutex

	store  *cred.Store
	engine *attestation.Engine
	timer  *failsafe.Timer
	logger log.Logger
	chanID string

	phase     Phase
	dacServed bool
	paiServed bool

	// pendingNonce is the nonce echoed in the last attestation
	// response, kept so an identical retried request is recognizably
	// harmless.
	pendingNonce []byte

	// opKey is the operational key generated at CSRRequest. Held only
	// in memory; cleared on commit or abort.
	opKey *cert.KeyPair

	// rootCert holds the commissioner's trusted root until AddNOC
	// commits. Never persisted on its own.
	rootCert       []byte
	rootParsed     *x509.Certificate
	committedIndex uint8
}

// NewSession creates a session in PhaseIdle and arms its fail-safe
// timer. The attempt must reach PhaseCommitted before the window
// elapses or the session aborts itself.
func NewSession(store *cred.Store, engine *attestation.Engine, cfg Config) (*Session, error) {
	s := &Session{
		store:  store,
		engine: engine,
		logger: cfg.Logger,
		chanID: cfg.ChannelID,
	}
	t, err := failsafe.NewTimer(cfg.Window, s.abortOnExpiry)
	if err != nil {
		return nil, err
	}
	s.timer = t
	s.timer.Arm()
	return s, nil
}

// Phase returns the session's current phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// CommittedFabricIndex returns the fabric index assigned at commit,
// zero if the session has not committed.
func (s *Session) CommittedFabricIndex() uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.committedIndex
}

// FailSafeRemaining returns the time left in the current fail-safe
// window.
func (s *Session) FailSafeRemaining() time.Duration {
	return s.timer.Remaining()
}

// HandleCertificateChainRequest serves the requested attestation
// certificate in DER form. Both DAC and PAI are fetched separately and
// either order is accepted; a fresh session moves to PhaseChainSent on
// the first fetch.
func (s *Session) HandleCertificateChainRequest(ct CertificateType) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase.Terminal() {
		return nil, ErrOutOfOrder
	}
	if s.phase > PhaseAttestationSent {
		return nil, ErrOutOfOrder
	}

	chain, err := s.store.EnsureAttestationIdentity()
	if err != nil {
		return nil, err
	}

	var der []byte
	switch ct {
	case CertificateTypeDAC:
		der = chain.DAC.Raw
		s.dacServed = true
	case CertificateTypePAI:
		der = chain.PAI.Raw
		s.paiServed = true
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCertificateType, ct)
	}

	if s.phase == PhaseIdle {
		s.transitionLocked(PhaseChainSent, "certificate chain requested")
	}
	s.timer.Arm()
	return der, nil
}

// ChainServed reports whether both attestation certificates have been
// fetched at least once.
func (s *Session) ChainServed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dacServed && s.paiServed
}

// HandleAttestationRequest builds and signs attestation elements
// echoing the supplied 32-byte nonce. Commissioners may request
// attestation before fetching certificates, so any pre-CSR phase is
// accepted. Retried requests with the same nonce are harmless.
func (s *Session) HandleAttestationRequest(nonce []byte) (elements, signature []byte, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase.Terminal() || s.phase > PhaseAttestationSent {
		return nil, nil, ErrOutOfOrder
	}

	elements, signature, err = s.engine.BuildAttestationResponse(nonce)
	if err != nil {
		return nil, nil, err
	}

	s.pendingNonce = append([]byte(nil), nonce...)
	if s.phase != PhaseAttestationSent {
		s.transitionLocked(PhaseAttestationSent, "attestation response signed")
	}
	s.timer.Arm()
	return elements, signature, nil
}

// HandleCSRRequest generates a fresh operational key, builds the NOC
// signing request for it, and signs the encoded elements with the
// attestation key. Attestation must precede the CSR. A retried request
// regenerates the key; only the last issued CSR can be committed.
func (s *Session) HandleCSRRequest(csrNonce []byte) (elements, signature []byte, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase.Terminal() || s.phase < PhaseAttestationSent || s.phase > PhaseCSRSent {
		return nil, nil, ErrOutOfOrder
	}

	opKey, err := cert.GenerateOperationalKeyPair()
	if err != nil {
		return nil, nil, err
	}
	elements, signature, err = s.engine.BuildCSRResponse(opKey, csrNonce)
	if err != nil {
		return nil, nil, err
	}

	s.opKey = opKey
	if s.phase != PhaseCSRSent {
		s.transitionLocked(PhaseCSRSent, "operational CSR issued")
	}
	s.timer.Arm()
	return elements, signature, nil
}

// HandleAddTrustedRootCertificate stores the commissioner's root
// certificate in the session. Nothing is persisted yet; persistence
// happens only at AddNOC commit.
func (s *Session) HandleAddTrustedRootCertificate(rootCert []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase.Terminal() || s.phase < PhaseCSRSent {
		return ErrOutOfOrder
	}
	if len(rootCert) == 0 || len(rootCert) > maxRootCertSize {
		return fmt.Errorf("%w: %d bytes", ErrInvalidRootCert, len(rootCert))
	}
	parsed, err := x509.ParseCertificate(rootCert)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRootCert, err)
	}

	s.rootCert = append([]byte(nil), rootCert...)
	s.rootParsed = parsed
	if s.phase != PhaseRootInstalled {
		s.transitionLocked(PhaseRootInstalled, "trusted root installed")
	}
	s.timer.Arm()
	return nil
}

// HandleAddNOC validates the issued operational certificate, builds
// the fabric record, and commits it durably. On success the session
// reaches PhaseCommitted and the transient operational key reference
// is cleared. Capacity and fail-safe failures abort the attempt.
func (s *Session) HandleAddNOC(noc, icac, ipk []byte, caseAdminSubject uint64, adminVendorID uint16) (uint8, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseRootInstalled {
		return 0, ErrOutOfOrder
	}
	if s.opKey == nil {
		// No CSR was ever issued for this session.
		return 0, ErrOutOfOrder
	}

	nocCert, err := parseNOC(noc)
	if err != nil {
		return 0, err
	}
	if len(icac) > 0 {
		if _, err := x509.ParseCertificate(icac); err != nil {
			return 0, fmt.Errorf("%w: intermediate: %v", ErrInvalidNOC, err)
		}
	}
	if len(ipk) > 0 && len(ipk) != 16 {
		return 0, fmt.Errorf("%w: identity protection key must be 16 bytes", ErrInvalidNOC)
	}

	fabricID, nodeID := nocIdentity(nocCert)
	rootPub, err := rootPublicKeyBytes(s.rootParsed)
	if err != nil {
		return 0, err
	}
	fingerprint, err := cred.CompressedFabricID(rootPub, fabricID)
	if err != nil {
		return 0, err
	}

	rec := cred.FabricRecord{
		FabricID:                 fabricID,
		NodeID:                   nodeID,
		VendorID:                 adminVendorID,
		RootPublicKeyFingerprint: fingerprint,
		CaseAdminSubject:         caseAdminSubject,
	}

	// Liveness re-check immediately before the durable commit. A
	// timer that fired while this handler was waiting must win.
	if s.timer.Expired() {
		s.abortLocked("fail-safe expired before commit")
		return 0, ErrFailSafeExpired
	}

	index, err := s.store.CommitFabric(rec)
	if err != nil {
		s.abortLocked("fabric commit failed")
		return 0, err
	}

	// The expiry callback blocks on the session mutex, so a window
	// that elapsed during the persist call is only visible here. A
	// late success must not leave a fabric behind.
	if !s.timer.Cancel() {
		if rmErr := s.store.RemoveFabric(index); rmErr != nil {
			s.logError("rollback of late commit failed", rmErr)
		}
		s.abortLocked("fail-safe expired during commit")
		return 0, ErrFailSafeExpired
	}

	s.committedIndex = index
	s.opKey = nil
	s.pendingNonce = nil
	s.transitionLocked(PhaseCommitted, fmt.Sprintf("fabric %d committed", index))
	return index, nil
}

// Abort abandons the attempt and destroys transient key material.
// Idempotent; aborting a committed session is a no-op.
func (s *Session) Abort(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase.Terminal() {
		return
	}
	s.timer.Cancel()
	s.abortLocked(reason)
}

// abortOnExpiry is the fail-safe timer callback.
func (s *Session) abortOnExpiry() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase.Terminal() {
		return
	}
	s.abortLocked("fail-safe window expired")
}

// abortLocked discards session state. The caller holds the mutex and
// has already dealt with the timer.
func (s *Session) abortLocked(reason string) {
	s.opKey = nil
	s.pendingNonce = nil
	s.rootCert = nil
	s.rootParsed = nil
	s.transitionLocked(PhaseAborted, reason)
}

func (s *Session) transitionLocked(next Phase, reason string) {
	old := s.phase
	s.phase = next
	if s.logger == nil {
		return
	}
	s.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: s.chanID,
		Layer:        log.LayerService,
		Category:     log.CategoryState,
		LocalRole:    log.RoleDevice,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityCommissioning,
			OldState: old.String(),
			NewState: next.String(),
			Reason:   reason,
		},
	})
}

func (s *Session) logError(context string, err error) {
	if s.logger == nil {
		return
	}
	s.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: s.chanID,
		Layer:        log.LayerService,
		Category:     log.CategoryError,
		LocalRole:    log.RoleDevice,
		Error: &log.ErrorEventData{
			Layer:   log.LayerService,
			Message: err.Error(),
			Context: context,
		},
	})
}

// parseNOC validates the operational certificate structurally.
func parseNOC(noc []byte) (*x509.Certificate, error) {
	if len(noc) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrInvalidNOC)
	}
	c, err := x509.ParseCertificate(noc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidNOC, err)
	}
	return c, nil
}

// nocIdentity extracts the fabric and node identifiers from the NOC
// subject. Commissioner CAs in this ecosystem encode them as
// organizational-unit entries "fid:<hex16>" and "nid:<hex16>",
// mirroring the vid/pid convention on attestation certificates. A NOC
// without them still yields a stable identity derived from its public
// key, so foreign but well-formed certificates commit cleanly.
func nocIdentity(noc *x509.Certificate) (fabricID, nodeID uint64) {
	var haveFab, haveNode bool
	for _, ou := range noc.Subject.OrganizationalUnit {
		if v, ok := parseHexOU(ou, "fid:"); ok {
			fabricID, haveFab = v, true
		}
		if v, ok := parseHexOU(ou, "nid:"); ok {
			nodeID, haveNode = v, true
		}
	}
	if haveFab && haveNode {
		return fabricID, nodeID
	}

	sum := sha256.Sum256(noc.RawSubjectPublicKeyInfo)
	if !haveFab {
		fabricID = binary.BigEndian.Uint64(sum[0:8])
	}
	if !haveNode {
		nodeID = binary.BigEndian.Uint64(sum[8:16])
	}
	return fabricID, nodeID
}

func parseHexOU(ou, prefix string) (uint64, bool) {
	if !strings.HasPrefix(ou, prefix) {
		return 0, false
	}
	v, err := strconv.ParseUint(ou[len(prefix):], 16, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// rootPublicKeyBytes returns the uncompressed EC point of the root
// certificate's public key, as consumed by the compressed fabric id
// derivation.
func rootPublicKeyBytes(root *x509.Certificate) ([]byte, error) {
	pub, ok := root.PublicKey.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: root key is not ECDSA", ErrInvalidRootCert)
	}
	return elliptic.Marshal(pub.Curve, pub.X, pub.Y), nil
}
