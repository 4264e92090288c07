package memory

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"icra-sorgu/internal/models"
	"icra-sorgu/internal/store"
)

func sampleResult(qt models.QueryType, payload string) models.QueryResult {
	return models.QueryResult{
		CaseFileID: 42,
		DebtorID:   7,
		QueryType:  qt,
		Payload:    json.RawMessage(payload),
		ObservedAt: time.Now().UTC(),
	}
}

func TestSaveAndLatest(t *testing.T) {
	st := NewStore()
	result := sampleResult(models.QueryTypeAddress, `{"Adres": "ANKARA"}`)
	require.NoError(t, st.Save(context.Background(), result))

	got, err := st.Latest(context.Background(), result.Key())
	require.NoError(t, err)
	assert.Equal(t, result.Payload, got.Payload)
	assert.Equal(t, result.ObservedAt, got.ObservedAt)
}

func TestLatestMissingKey(t *testing.T) {
	st := NewStore()

	_, err := st.Latest(context.Background(), models.ResultKey{
		CaseFileID: 1, DebtorID: 1, QueryType: models.QueryTypeAddress,
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSaveOverwritesPriorResult(t *testing.T) {
	st := NewStore()
	first := sampleResult(models.QueryTypeAddress, `{"Adres": "ANKARA"}`)
	require.NoError(t, st.Save(context.Background(), first))

	second := sampleResult(models.QueryTypeAddress, `{"Adres": "İSTANBUL"}`)
	second.ObservedAt = first.ObservedAt.Add(time.Minute)
	require.NoError(t, st.Save(context.Background(), second))

	got, err := st.Latest(context.Background(), first.Key())
	require.NoError(t, err)
	assert.Equal(t, second.Payload, got.Payload)
	assert.Equal(t, second.ObservedAt, got.ObservedAt)
}

func TestResultsAreIsolatedPerQueryType(t *testing.T) {
	st := NewStore()
	addr := sampleResult(models.QueryTypeAddress, `{"Adres": "ANKARA"}`)
	veh := sampleResult(models.QueryTypeVehicle, `[{"Plaka": "06ABC123"}]`)
	require.NoError(t, st.Save(context.Background(), addr))
	require.NoError(t, st.Save(context.Background(), veh))

	gotAddr, err := st.Latest(context.Background(), addr.Key())
	require.NoError(t, err)
	assert.Equal(t, addr.Payload, gotAddr.Payload)

	gotVeh, err := st.Latest(context.Background(), veh.Key())
	require.NoError(t, err)
	assert.Equal(t, veh.Payload, gotVeh.Payload)
}

func TestLatestReturnsCopy(t *testing.T) {
	st := NewStore()
	result := sampleResult(models.QueryTypeAddress, `{"Adres": "ANKARA"}`)
	require.NoError(t, st.Save(context.Background(), result))

	got, err := st.Latest(context.Background(), result.Key())
	require.NoError(t, err)
	got.Payload = json.RawMessage(`{"mutated": true}`)

	again, err := st.Latest(context.Background(), result.Key())
	require.NoError(t, err)
	assert.Equal(t, result.Payload, again.Payload)
}
