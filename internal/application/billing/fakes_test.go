package billing_test

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jhoicas/facturacion-sunat/internal/domain"
	"github.com/jhoicas/facturacion-sunat/internal/domain/entity"
	"github.com/jhoicas/facturacion-sunat/internal/domain/repository"
	infrasunat "github.com/jhoicas/facturacion-sunat/internal/infrastructure/sunat"
	pkgsunat "github.com/jhoicas/facturacion-sunat/pkg/sunat"
	"github.com/stretchr/testify/require"
)

// ─── Repositorios en memoria ────────────────────────────────────────────────

type memStore struct {
	mu   sync.Mutex
	docs map[string]*entity.Document
	acks []*entity.AcknowledgmentRecord
	logs []*entity.OperationLogEntry
}

func newMemStore() *memStore {
	return &memStore{docs: map[string]*entity.Document{}}
}

func (s *memStore) Docs() *memDocs { return &memDocs{s} }
func (s *memStore) Acks() *memAcks { return &memAcks{s} }
func (s *memStore) Logs() *memLogs { return &memLogs{s} }

// put guarda un comprobante sin validaciones (para preparar escenarios).
func (s *memStore) put(doc *entity.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *doc
	s.docs[doc.ID] = &cp
}

func (s *memStore) get(id string) *entity.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.docs[id]
	if d == nil {
		return nil
	}
	cp := *d
	return &cp
}

// stages etapas registradas para el documento, en orden.
func (s *memStore) stages(documentID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, e := range s.logs {
		if e.DocumentID == documentID {
			out = append(out, e.Stage+":"+e.Outcome)
		}
	}
	return out
}

func (s *memStore) entries(documentID string) []*entity.OperationLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entity.OperationLogEntry
	for _, e := range s.logs {
		if e.DocumentID == documentID {
			out = append(out, e)
		}
	}
	return out
}

type memDocs struct{ s *memStore }

var _ repository.DocumentRepository = (*memDocs)(nil)

func (r *memDocs) Create(_ context.Context, doc *entity.Document) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, d := range r.s.docs {
		if d.NaturalKey() == doc.NaturalKey() {
			return fmt.Errorf("comprobante %s ya existe: %w", doc.NaturalKey(), domain.ErrDuplicate)
		}
	}
	cp := *doc
	r.s.docs[doc.ID] = &cp
	return nil
}

func (r *memDocs) Update(_ context.Context, doc *entity.Document) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.docs[doc.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *doc
	r.s.docs[doc.ID] = &cp
	return nil
}

func (r *memDocs) GetByID(_ context.Context, id string) (*entity.Document, error) {
	return r.s.get(id), nil
}

func (r *memDocs) GetByNaturalKey(_ context.Context, ruc, typeCode, series string, number int64) (*entity.Document, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, d := range r.s.docs {
		if d.Supplier.ID == ruc && d.Header.TypeCode == typeCode && d.Header.Series == series && d.Header.Number == number {
			cp := *d
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memDocs) ListByStatus(_ context.Context, ruc string, status entity.DocumentStatus, limit int) ([]*entity.Document, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Document
	for _, d := range r.s.docs {
		if d.Supplier.ID == ruc && d.Status == status {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Header.Number < out[j].Header.Number })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memAcks struct{ s *memStore }

func (r *memAcks) Append(_ context.Context, rec *entity.AcknowledgmentRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.acks = append(r.s.acks, rec)
	return nil
}

func (r *memAcks) Latest(_ context.Context, documentID string) (*entity.AcknowledgmentRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := len(r.s.acks) - 1; i >= 0; i-- {
		if r.s.acks[i].DocumentID == documentID {
			return r.s.acks[i], nil
		}
	}
	return nil, nil
}

func (r *memAcks) ListByDocument(_ context.Context, documentID string) ([]*entity.AcknowledgmentRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.AcknowledgmentRecord
	for _, a := range r.s.acks {
		if a.DocumentID == documentID {
			out = append(out, a)
		}
	}
	return out, nil
}

type memLogs struct{ s *memStore }

func (r *memLogs) Append(_ context.Context, e *entity.OperationLogEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.logs = append(r.s.logs, e)
	return nil
}

func (r *memLogs) ListByDocument(_ context.Context, documentID string) ([]*entity.OperationLogEntry, error) {
	return r.s.entries(documentID), nil
}

// memTx ejecuta fn sobre el mismo almacén (sin rollback).
type memTx struct{ s *memStore }

func (t memTx) RunInTx(_ context.Context, fn func(repository.DocumentRepository, repository.OperationLogRepository) error) error {
	return fn(t.s.Docs(), t.s.Logs())
}

// ─── Firma y SUNAT falsos ───────────────────────────────────────────────────

type fakeSigner struct {
	mode   pkgsunat.SignatureMode
	reason string
	xml    []byte // si no es nil reemplaza la salida
	err    error
	calls  int
}

func (f *fakeSigner) SignWithFallback(xmlBytes []byte, _, _ string) (*pkgsunat.SignResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := xmlBytes
	if f.xml != nil {
		out = f.xml
	}
	res := &pkgsunat.SignResult{XML: out, Mode: f.mode, SignerRUC: "20100066603"}
	if f.mode == pkgsunat.SignatureModeSimulated {
		res.Reason = f.reason
		res.Trail = []pkgsunat.AttemptState{pkgsunat.AttemptUnsigned, pkgsunat.AttemptValidating, pkgsunat.AttemptSimulatedFallback}
	} else {
		res.DigestValue = "ZGlnZXN0LWRlLXBydWViYQ=="
		res.Trail = []pkgsunat.AttemptState{pkgsunat.AttemptUnsigned, pkgsunat.AttemptValidating, pkgsunat.AttemptSigned}
	}
	return res, nil
}

type fakeSubmitter struct {
	mu sync.Mutex

	billResp *infrasunat.BillResponse
	billErr  error
	billGate chan struct{} // si no es nil, SendBill espera a que se cierre

	ticket     string
	summaryErr error

	statuses  []*infrasunat.StatusResponse // GetStatus los consume en orden
	statusErr error

	cdrStatus *infrasunat.StatusResponse
	cdrErr    error

	calls    []string
	lastCred infrasunat.Credentials
	lastFile string
	lastZip  []byte
}

func (f *fakeSubmitter) SendBill(_ context.Context, fileName string, zipBytes []byte, cred infrasunat.Credentials) (*infrasunat.BillResponse, error) {
	if f.billGate != nil {
		<-f.billGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "sendBill")
	f.lastCred, f.lastFile, f.lastZip = cred, fileName, zipBytes
	if f.billErr != nil {
		return nil, f.billErr
	}
	return f.billResp, nil
}

func (f *fakeSubmitter) SendSummary(_ context.Context, fileName string, zipBytes []byte, cred infrasunat.Credentials) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "sendSummary")
	f.lastCred, f.lastFile, f.lastZip = cred, fileName, zipBytes
	return f.ticket, f.summaryErr
}

func (f *fakeSubmitter) GetStatus(_ context.Context, ticket string, _ infrasunat.Credentials) (*infrasunat.StatusResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "getStatus:"+ticket)
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	st := f.statuses[0]
	f.statuses = f.statuses[1:]
	return st, nil
}

func (f *fakeSubmitter) GetStatusCdr(_ context.Context, ruc, typeCode, series string, number int64, _ infrasunat.Credentials) (*infrasunat.StatusResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("getStatusCdr:%s-%s-%s-%d", ruc, typeCode, series, number))
	return f.cdrStatus, f.cdrErr
}

func (f *fakeSubmitter) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// ─── CDR ────────────────────────────────────────────────────────────────────

func cdrZip(t *testing.T, code, description string, notes ...string) []byte {
	t.Helper()
	var noteXML string
	for _, n := range notes {
		noteXML += "<cbc:Note>" + n + "</cbc:Note>"
	}
	content := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<ar:ApplicationResponse xmlns:ar="urn:oasis:names:specification:ubl:schema:xsd:ApplicationResponse-2"
  xmlns:cac="urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2"
  xmlns:cbc="urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2">
  <cbc:ID>%d</cbc:ID>
  <cbc:IssueDate>2024-03-15</cbc:IssueDate>
  <cbc:IssueTime>10:30:00</cbc:IssueTime>
  <cbc:ResponseDate>2024-03-15</cbc:ResponseDate>
  <cbc:ResponseTime>10:30:05</cbc:ResponseTime>
  %s
  <cac:SenderParty><cac:PartyIdentification><cbc:ID>20131312955</cbc:ID></cac:PartyIdentification></cac:SenderParty>
  <cac:ReceiverParty><cac:PartyIdentification><cbc:ID>6-20100066603</cbc:ID></cac:PartyIdentification></cac:ReceiverParty>
  <cac:DocumentResponse>
    <cac:Response>
      <cbc:ReferenceID>F001-1</cbc:ReferenceID>
      <cbc:ResponseCode>%s</cbc:ResponseCode>
      <cbc:Description>%s</cbc:Description>
    </cac:Response>
  </cac:DocumentResponse>
</ar:ApplicationResponse>`, time.Now().UnixNano(), noteXML, code, description)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, err := zw.Create("dummy/")
	require.NoError(t, err)
	w, err := zw.Create("R-20100066603-01-F001-00000001.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}
