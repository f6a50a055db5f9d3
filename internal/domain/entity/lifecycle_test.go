package entity_test

import (
	"testing"
	"time"

	"github.com/jhoicas/facturacion-sunat/internal/domain"
	"github.com/jhoicas/facturacion-sunat/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransition_CaminoFeliz(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	doc := &entity.Document{Status: entity.StatusDraft}

	for _, next := range []entity.DocumentStatus{
		entity.StatusPendingSignature,
		entity.StatusSigned,
		entity.StatusSubmitted,
		entity.StatusAccepted,
	} {
		require.NoError(t, doc.Transition(next, now))
		assert.Equal(t, next, doc.Status)
	}
	assert.Equal(t, now, doc.UpdatedAt)
}

func TestTransition_SoloHaciaAdelante(t *testing.T) {
	doc := &entity.Document{Status: entity.StatusSigned}
	err := doc.Transition(entity.StatusDraft, time.Now())
	require.ErrorIs(t, err, domain.ErrInvalidState)
	assert.Equal(t, entity.StatusSigned, doc.Status)

	// saltarse la firma tampoco está permitido
	doc = &entity.Document{Status: entity.StatusDraft}
	assert.ErrorIs(t, doc.Transition(entity.StatusSubmitted, time.Now()), domain.ErrInvalidState)
}

func TestTransition_ErrorAbsorbente(t *testing.T) {
	for _, from := range []entity.DocumentStatus{
		entity.StatusDraft, entity.StatusPendingSignature, entity.StatusSigned,
		entity.StatusSimulatedSigned, entity.StatusSubmitted,
	} {
		assert.True(t, entity.CanTransition(from, entity.StatusError), "desde %s", from)
	}

	doc := &entity.Document{Status: entity.StatusError}
	for _, to := range []entity.DocumentStatus{entity.StatusDraft, entity.StatusSubmitted, entity.StatusAccepted, entity.StatusError} {
		assert.Error(t, doc.Transition(to, time.Now()), "Error → %s", to)
	}
}

func TestTransition_TerminalesNoCambian(t *testing.T) {
	for _, s := range []entity.DocumentStatus{entity.StatusAccepted, entity.StatusRejected, entity.StatusAcceptedWithObservations} {
		assert.True(t, s.IsTerminal())
		assert.False(t, entity.CanTransition(s, entity.StatusError))
		assert.False(t, entity.CanTransition(s, entity.StatusSubmitted))
	}
}

func TestClassifyResponseCode(t *testing.T) {
	rec := &entity.AcknowledgmentRecord{Outcome: entity.ClassifyResponseCode("0", nil)}
	assert.True(t, rec.Accepted())
	assert.False(t, rec.Rejected())
	assert.False(t, rec.AcceptedWithObservations())

	rec = &entity.AcknowledgmentRecord{Outcome: entity.ClassifyResponseCode("2001", nil)}
	assert.True(t, rec.Rejected())
	assert.False(t, rec.Accepted())

	rec = &entity.AcknowledgmentRecord{Outcome: entity.ClassifyResponseCode("4001", nil)}
	assert.True(t, rec.AcceptedWithObservations())
	assert.False(t, rec.Rejected())

	assert.Equal(t, entity.OutcomeRejected, entity.ClassifyResponseCode("3105", nil))
	assert.Equal(t, entity.OutcomeUnknown, entity.ClassifyResponseCode("98", nil))
	assert.Equal(t, entity.OutcomeUnknown, entity.ClassifyResponseCode("", nil))
	assert.Equal(t, entity.OutcomeUnknown, entity.ClassifyResponseCode("1033", nil))

	notes := []entity.AcknowledgmentNote{{Code: "4252", Description: "listName"}}
	assert.Equal(t, entity.OutcomeAcceptedWithObservations, entity.ClassifyResponseCode("0", notes))
}

func TestStatusForOutcome(t *testing.T) {
	s, ok := entity.StatusForOutcome(entity.OutcomeAcceptedWithObservations)
	assert.True(t, ok)
	assert.Equal(t, entity.StatusAcceptedWithObservations, s)

	_, ok = entity.StatusForOutcome(entity.OutcomeUnknown)
	assert.False(t, ok)
}

func TestDocument_NaturalKey(t *testing.T) {
	doc := &entity.Document{
		Header:   entity.DocumentHeader{TypeCode: "01", Series: "F001", Number: 123},
		Supplier: entity.Party{ID: "20100066603"},
	}
	assert.Equal(t, "F001-00000123", doc.Header.DocumentID())
	assert.Equal(t, "20100066603-01-F001-00000123", doc.NaturalKey())
}
