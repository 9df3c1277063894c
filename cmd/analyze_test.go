package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NeverShitty/chittyfinance-sub000/internal/model"
)

func writeTempJSON(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadSnapshotParts_LabelsFromSource(t *testing.T) {
	path := writeTempJSON(t, `[
		{"source": "stripe", "cash_on_hand": 100},
		{"monthly_revenue": 5000}
	]`)

	parts, err := loadSnapshotParts(path)
	require.NoError(t, err)
	require.Len(t, parts, 2)

	assert.Equal(t, "stripe", parts[0].Label)
	assert.Equal(t, "source 2", parts[1].Label, "unlabeled snapshots get a positional label")
	require.NotNil(t, parts[0].Snapshot.CashOnHand)
	assert.Equal(t, 100.0, *parts[0].Snapshot.CashOnHand)
}

func TestLoadSnapshotParts_MissingFile(t *testing.T) {
	_, err := loadSnapshotParts(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestLoadJSONFile_Charges(t *testing.T) {
	path := writeTempJSON(t, `[
		{"merchant_name": "AWS", "amount": 1200, "recurring": true},
		{"merchant_name": "Conference", "amount": 900, "recurring": false}
	]`)

	charges, err := loadJSONFile[[]model.ChargeDetails](path)
	require.NoError(t, err)
	require.Len(t, charges, 2)
	assert.Equal(t, "AWS", charges[0].MerchantName)
	assert.True(t, charges[0].Recurring)
}

func TestLoadJSONFile_Malformed(t *testing.T) {
	path := writeTempJSON(t, `{not json`)

	_, err := loadJSONFile[[]model.ChargeDetails](path)
	assert.Error(t, err)
}
