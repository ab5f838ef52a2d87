package attribution

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinytelemetry/drillgis/internal/model"
)

func fixture() []model.Record {
	return []model.Record{
		{JobID: "100001-200001-01", CompanyCode: "100001", OperatorPin: "200001"},
		{JobID: "100001-200002-01", CompanyCode: "100001", OperatorPin: "200002"},
		{JobID: "100002-300001-01", CompanyCode: "100002", OperatorPin: "300001"},
		{JobID: "100001-200001-02", CompanyCode: "100001", OperatorPin: "200001"},
	}
}

func TestResolve_NoIdentity(t *testing.T) {
	in := fixture()
	out := Resolve(in, nil)
	require.Len(t, out, len(in))
	for _, r := range out {
		assert.Equal(t, "", r.AttributionLabel)
		assert.Equal(t, OtherWeight, r.EmphasisWeight)
	}
}

func TestResolve_Operator(t *testing.T) {
	id := &model.Identity{Kind: model.AccountOperator, CompanyName: "Acme", CompanyCode: "100001", OperatorPin: "200001"}
	out := Resolve(fixture(), id)

	var own, other int
	for _, r := range out {
		switch r.AttributionLabel {
		case "200001":
			own++
			assert.Equal(t, "200001", r.OperatorPin)
			assert.Equal(t, OwnWeight, r.EmphasisWeight)
		case model.OtherLabel:
			other++
			assert.NotEqual(t, "200001", r.OperatorPin)
			assert.Equal(t, OtherWeight, r.EmphasisWeight)
		default:
			t.Fatalf("unexpected label %q", r.AttributionLabel)
		}
	}
	assert.Equal(t, 2, own)
	assert.Equal(t, 2, other)
}

func TestResolve_Company(t *testing.T) {
	id := &model.Identity{Kind: model.AccountCompany, CompanyName: "Acme", CompanyCode: "100001"}
	out := Resolve(fixture(), id)

	labels := make([]string, len(out))
	for i, r := range out {
		labels[i] = r.AttributionLabel
	}
	assert.Equal(t, []string{"Acme", "Acme", model.OtherLabel, "Acme"}, labels)
}

func TestResolve_DoesNotMutateInput(t *testing.T) {
	in := fixture()
	id := &model.Identity{Kind: model.AccountCompany, CompanyName: "Acme", CompanyCode: "100001"}
	_ = Resolve(in, id)
	for _, r := range in {
		assert.Empty(t, r.AttributionLabel)
		assert.Zero(t, r.EmphasisWeight)
	}
}

func TestLabels(t *testing.T) {
	assert.Equal(t, []string{""}, Labels(nil))
	id := &model.Identity{Kind: model.AccountOperator, OperatorPin: "200001"}
	assert.Equal(t, []string{"200001", model.OtherLabel}, Labels(id))
}
