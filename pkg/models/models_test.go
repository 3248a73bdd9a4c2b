package models

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/require"
)

func TestAccountIDMarshalsToRecordID(t *testing.T) {
	id := AccountID("acct-42")

	data, err := id.MarshalCBOR()
	require.NoError(t, err)

	var tag cbor.Tag
	require.NoError(t, cbor.Unmarshal(data, &tag))
	require.Equal(t, uint64(8), tag.Number)

	arr, ok := tag.Content.([]any)
	require.True(t, ok)
	require.Equal(t, TableAccounts, arr[0])
	require.Equal(t, "acct-42", arr[1])
}

func TestIDRoundTripCBOR(t *testing.T) {
	original := GameSessionID("sess-abc")
	data, err := original.MarshalCBOR()
	require.NoError(t, err)

	var decoded GameSessionID
	require.NoError(t, decoded.UnmarshalCBOR(data))
	require.Equal(t, original, decoded)
}

func TestIDUnmarshalAcceptsPlainString(t *testing.T) {
	data, err := cbor.Marshal("score-legacy-7")
	require.NoError(t, err)

	var id PlayerScenarioScoreID
	require.NoError(t, id.UnmarshalCBOR(data))
	require.Equal(t, "score-legacy-7", id.String())
}

func TestIDUnmarshalRejectsWrongTable(t *testing.T) {
	data, err := AccountID("acct-1").MarshalCBOR()
	require.NoError(t, err)

	var id GameSessionID
	require.Error(t, id.UnmarshalCBOR(data))
}

func TestNewIDsCarryPrefix(t *testing.T) {
	require.Contains(t, NewAccountID().String(), "acct-")
	require.Contains(t, NewGameSessionID().String(), "sess-")
	require.Contains(t, NewPlayerScenarioScoreID().String(), "score-")
	require.NotEqual(t, NewAccountID(), NewAccountID())
}

func TestIDSQLValueAndScan(t *testing.T) {
	v, err := AccountID("acct-1").Value()
	require.NoError(t, err)
	require.Equal(t, "acct-1", v)

	// Zero IDs store as NULL.
	v, err = AccountID("").Value()
	require.NoError(t, err)
	require.Nil(t, v)

	var id AccountID
	require.NoError(t, id.Scan("acct-2"))
	require.Equal(t, AccountID("acct-2"), id)
	require.NoError(t, id.Scan(nil))
	require.True(t, id.IsZero())
}

func TestJSONMapValueAndScan(t *testing.T) {
	m := JSONMap{"volume": 0.8, "locale": "en"}

	v, err := m.Value()
	require.NoError(t, err)

	var decoded JSONMap
	require.NoError(t, decoded.Scan(v))
	require.Equal(t, "en", decoded["locale"])
	require.Equal(t, 0.8, decoded["volume"])
}
