package service

import (
	"errors"
	"time"

	"github.com/smartpanel-home/panel-go/pkg/attestation"
	"github.com/smartpanel-home/panel-go/pkg/commissioning"
	"github.com/smartpanel-home/panel-go/pkg/cred"
	"github.com/smartpanel-home/panel-go/pkg/log"
	"github.com/smartpanel-home/panel-go/pkg/tlv"
	"github.com/smartpanel-home/panel-go/pkg/wire"
)

// Request field context tags, by command.
const (
	fieldCertChainType    = 0 // CertificateChainRequest: certificate type
	fieldAttestationNonce = 0 // AttestationRequest: 32-byte nonce
	fieldCSRNonce         = 0 // CSRRequest: 32-byte nonce
	fieldRootCertificate  = 0 // AddTrustedRootCertificate: DER root
	fieldNOCValue         = 0 // AddNOC: DER operational certificate
	fieldICACValue        = 1 // AddNOC: optional intermediate
	fieldIPKValue         = 2 // AddNOC: identity protection key
	fieldCaseAdminSubject = 3 // AddNOC: administrator subject
	fieldAdminVendorID    = 4 // AddNOC: administrator vendor id
	fieldFabricIndex      = 0 // RemoveFabric: 1-based index
)

// Response field context tags.
const (
	respTagCertificate  = 0 // CertificateChainResponse
	respTagElements     = 0 // Attestation/CSR response elements
	respTagSignature    = 1 // Attestation/CSR response signature
	respTagStatusCode   = 0 // NOCResponse status
	respTagFabricIndex  = 1 // NOCResponse assigned index
)

// Dispatcher maps command invocations onto the commissioning state
// machine and packages results back into wire responses.
type Dispatcher struct {
	registry *Registry
	store    *cred.Store
	logger   log.Logger
	now      func() time.Time
}

// Options tunes dispatcher construction.
type Options struct {
	// Window is the fail-safe window for new sessions. Zero selects
	// the default.
	Window time.Duration

	// Logger receives command and state-change events. Nil disables
	// logging.
	Logger log.Logger
}

// NewDispatcher creates a dispatcher serving the operational
// credentials cluster from the given store and attestation engine.
func NewDispatcher(store *cred.Store, engine *attestation.Engine, opts Options) *Dispatcher {
	return &Dispatcher{
		registry: NewRegistry(store, engine, opts.Window, opts.Logger),
		store:    store,
		logger:   opts.Logger,
		now:      time.Now,
	}
}

// Registry exposes the per-channel session registry, for transport
// lifecycle hooks.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Dispatch routes one decoded invocation to its handler and returns
// the wire response. It never panics on unknown input: unsupported
// clusters and commands yield their status codes, and handler errors
// map to the error taxonomy. channelID identifies the authenticated
// channel the request arrived on.
func (d *Dispatcher) Dispatch(channelID string, req *wire.CommandRequest) wire.CommandResponse {
	start := d.now()
	resp := d.dispatch(channelID, req)
	d.logResponse(channelID, req, resp, d.now().Sub(start))
	return resp
}

func (d *Dispatcher) dispatch(channelID string, req *wire.CommandRequest) wire.CommandResponse {
	if req.ClusterID != wire.OperationalCredentialsClusterID {
		return d.statusResponse(req, req.CommandID, wire.StatusUnsupportedCluster)
	}

	fields, err := wire.Normalize(req.Fields)
	if err != nil {
		return d.statusResponse(req, req.CommandID, wire.StatusMalformedPayload)
	}

	switch req.CommandID {
	case wire.CmdCertificateChainRequest:
		return d.handleCertificateChain(channelID, req, fields)
	case wire.CmdAttestationRequest:
		return d.handleAttestation(channelID, req, fields)
	case wire.CmdCSRRequest:
		return d.handleCSR(channelID, req, fields)
	case wire.CmdAddTrustedRootCert:
		return d.handleAddTrustedRoot(channelID, req, fields)
	case wire.CmdAddNOC:
		return d.handleAddNOC(channelID, req, fields)
	case wire.CmdRemoveFabric:
		return d.handleRemoveFabric(req, fields)
	default:
		return d.statusResponse(req, req.CommandID, wire.StatusUnsupportedCommand)
	}
}

func (d *Dispatcher) handleCertificateChain(channelID string, req *wire.CommandRequest, fields wire.FieldValue) wire.CommandResponse {
	ctRaw, ok := fields.UintField(fieldCertChainType, 0)
	if !ok || !wire.CertificateChainType(ctRaw).IsValid() {
		return d.statusResponse(req, wire.CmdCertificateChainResponse, wire.StatusMalformedPayload)
	}

	s, err := d.registry.SessionFor(channelID)
	if err != nil {
		return d.statusResponse(req, wire.CmdCertificateChainResponse, statusFromError(err))
	}
	der, err := s.HandleCertificateChainRequest(commissioning.CertificateType(ctRaw))
	if err != nil {
		return d.statusResponse(req, wire.CmdCertificateChainResponse, statusFromError(err))
	}

	w := tlv.NewWriter()
	w.StartStructure(tlv.Anonymous())
	w.PutBytes(tlv.ContextTag(respTagCertificate), der)
	w.EndContainer()
	return d.payloadResponse(req, wire.CmdCertificateChainResponse, w)
}

func (d *Dispatcher) handleAttestation(channelID string, req *wire.CommandRequest, fields wire.FieldValue) wire.CommandResponse {
	nonce, ok := fields.BytesField(fieldAttestationNonce, 0)
	if !ok {
		return d.statusResponse(req, wire.CmdAttestationResponse, wire.StatusMalformedPayload)
	}

	s, err := d.registry.SessionFor(channelID)
	if err != nil {
		return d.statusResponse(req, wire.CmdAttestationResponse, statusFromError(err))
	}
	elements, sig, err := s.HandleAttestationRequest(nonce)
	if err != nil {
		return d.statusResponse(req, wire.CmdAttestationResponse, statusFromError(err))
	}
	return d.signedElementsResponse(req, wire.CmdAttestationResponse, elements, sig)
}

func (d *Dispatcher) handleCSR(channelID string, req *wire.CommandRequest, fields wire.FieldValue) wire.CommandResponse {
	nonce, ok := fields.BytesField(fieldCSRNonce, 0)
	if !ok {
		return d.statusResponse(req, wire.CmdCSRResponse, wire.StatusMalformedPayload)
	}

	s, err := d.registry.SessionFor(channelID)
	if err != nil {
		return d.statusResponse(req, wire.CmdCSRResponse, statusFromError(err))
	}
	elements, sig, err := s.HandleCSRRequest(nonce)
	if err != nil {
		return d.statusResponse(req, wire.CmdCSRResponse, statusFromError(err))
	}
	return d.signedElementsResponse(req, wire.CmdCSRResponse, elements, sig)
}

// handleAddTrustedRoot is accept/reject only: the response carries a
// bare status code, no structured payload.
func (d *Dispatcher) handleAddTrustedRoot(channelID string, req *wire.CommandRequest, fields wire.FieldValue) wire.CommandResponse {
	root, ok := fields.BytesField(fieldRootCertificate, 0)
	if !ok {
		return d.statusResponse(req, req.CommandID, wire.StatusMalformedPayload)
	}

	s, err := d.registry.SessionFor(channelID)
	if err != nil {
		return d.statusResponse(req, req.CommandID, statusFromError(err))
	}
	if err := s.HandleAddTrustedRootCertificate(root); err != nil {
		return d.statusResponse(req, req.CommandID, statusFromError(err))
	}
	return d.statusResponse(req, req.CommandID, wire.StatusSuccess)
}

func (d *Dispatcher) handleAddNOC(channelID string, req *wire.CommandRequest, fields wire.FieldValue) wire.CommandResponse {
	noc, ok := fields.BytesField(fieldNOCValue, 0)
	if !ok {
		return d.nocResponse(req, wire.StatusMalformedPayload, 0)
	}
	icac, _ := fields.BytesField(fieldICACValue, 1)
	ipk, _ := fields.BytesField(fieldIPKValue, 2)
	caseAdmin, _ := fields.UintField(fieldCaseAdminSubject, 3)
	adminVID, _ := fields.UintField(fieldAdminVendorID, 4)
	if adminVID > 0xFFFF {
		return d.nocResponse(req, wire.StatusMalformedPayload, 0)
	}

	s, err := d.registry.SessionFor(channelID)
	if err != nil {
		return d.nocResponse(req, statusFromError(err), 0)
	}
	index, err := s.HandleAddNOC(noc, icac, ipk, caseAdmin, uint16(adminVID))
	if err != nil {
		return d.nocResponse(req, statusFromError(err), 0)
	}
	return d.nocResponse(req, wire.StatusSuccess, index)
}

// handleRemoveFabric is administrative and independent of any
// commissioning session phase.
func (d *Dispatcher) handleRemoveFabric(req *wire.CommandRequest, fields wire.FieldValue) wire.CommandResponse {
	index, ok := fields.UintField(fieldFabricIndex, 0)
	if !ok || index == 0 || index > 0xFF {
		return d.statusResponse(req, req.CommandID, wire.StatusMalformedPayload)
	}
	if err := d.store.RemoveFabric(uint8(index)); err != nil {
		return d.statusResponse(req, req.CommandID, statusFromError(err))
	}
	return d.statusResponse(req, req.CommandID, wire.StatusSuccess)
}

func (d *Dispatcher) statusResponse(req *wire.CommandRequest, respCmd uint8, status wire.Status) wire.CommandResponse {
	return wire.CommandResponse{
		Path: wire.CommandPath{
			EndpointID: req.EndpointID,
			ClusterID:  req.ClusterID,
			CommandID:  respCmd,
		},
		Status: status,
	}
}

func (d *Dispatcher) payloadResponse(req *wire.CommandRequest, respCmd uint8, w *tlv.Writer) wire.CommandResponse {
	payload, err := w.Bytes()
	if err != nil {
		return d.statusResponse(req, respCmd, statusFromError(err))
	}
	resp := d.statusResponse(req, respCmd, wire.StatusSuccess)
	resp.Payload = payload
	return resp
}

func (d *Dispatcher) signedElementsResponse(req *wire.CommandRequest, respCmd uint8, elements, sig []byte) wire.CommandResponse {
	w := tlv.NewWriter()
	w.StartStructure(tlv.Anonymous())
	w.PutBytes(tlv.ContextTag(respTagElements), elements)
	w.PutBytes(tlv.ContextTag(respTagSignature), sig)
	w.EndContainer()
	return d.payloadResponse(req, respCmd, w)
}

// nocResponse always carries the structured NOCResponse payload, even
// on failure, so commissioners get the status both in the envelope and
// in the response fields.
func (d *Dispatcher) nocResponse(req *wire.CommandRequest, status wire.Status, index uint8) wire.CommandResponse {
	w := tlv.NewWriter()
	w.StartStructure(tlv.Anonymous())
	w.PutUint(tlv.ContextTag(respTagStatusCode), uint64(status))
	if status == wire.StatusSuccess {
		w.PutUint(tlv.ContextTag(respTagFabricIndex), uint64(index))
	}
	w.EndContainer()

	payload, err := w.Bytes()
	if err != nil {
		return d.statusResponse(req, wire.CmdNOCResponse, statusFromError(err))
	}
	resp := d.statusResponse(req, wire.CmdNOCResponse, status)
	resp.Payload = payload
	return resp
}

// statusFromError maps the handler error taxonomy to wire status
// codes. Unrecognized errors are internal: the command is rejected but
// nothing already committed is lost.
func statusFromError(err error) wire.Status {
	switch {
	case err == nil:
		return wire.StatusSuccess
	case errors.Is(err, tlv.ErrMalformedPayload), errors.Is(err, commissioning.ErrUnknownCertificateType):
		return wire.StatusMalformedPayload
	case errors.Is(err, attestation.ErrInvalidNonce):
		return wire.StatusInvalidNonce
	case errors.Is(err, attestation.ErrDeclarationTooLarge):
		return wire.StatusDeclarationTooLarge
	case errors.Is(err, commissioning.ErrOutOfOrder):
		return wire.StatusOutOfOrder
	case errors.Is(err, commissioning.ErrInvalidNOC), errors.Is(err, commissioning.ErrInvalidRootCert):
		return wire.StatusInvalidNOC
	case errors.Is(err, commissioning.ErrFailSafeExpired):
		return wire.StatusFailSafeExpired
	case errors.Is(err, cred.ErrCapacityExceeded):
		return wire.StatusCapacityExceeded
	case errors.Is(err, cred.ErrFabricNotFound):
		return wire.StatusNotFound
	default:
		return wire.StatusInternalError
	}
}

func (d *Dispatcher) logResponse(channelID string, req *wire.CommandRequest, resp wire.CommandResponse, took time.Duration) {
	if d.logger == nil {
		return
	}
	status := resp.Status
	d.logger.Log(log.Event{
		Timestamp:    d.now(),
		ConnectionID: d.registry.SessionID(channelID),
		Direction:    log.DirectionOut,
		Layer:        log.LayerWire,
		Category:     log.CategoryMessage,
		LocalRole:    log.RoleDevice,
		Command: &log.CommandEvent{
			EndpointID:     req.EndpointID,
			ClusterID:      req.ClusterID,
			CommandID:      req.CommandID,
			Status:         &status,
			PayloadSize:    len(resp.Payload),
			ProcessingTime: &took,
		},
	})
}
