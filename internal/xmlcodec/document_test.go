package xmlcodec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdcgo/sdc-core/internal/model"
	"github.com/sdcgo/sdc-core/internal/xmlcodec"
)

func sampleEntities() []model.Entity {
	return []model.Entity{
		{
			Descriptor: model.Descriptor{Handle: "mds1", Kind: model.KindMDS, DescriptorVersion: 0},
			States:     []model.State{{DescriptorHandle: "mds1", StateVersion: 0}},
		},
		{
			Descriptor: model.Descriptor{
				Handle: "metric1", Kind: model.KindNumericMetric, ParentHandle: "mds1",
				Metric: &model.MetricDescriptor{Unit: "mmHg", Resolution: 0.1},
			},
			States: []model.State{{
				DescriptorHandle: "metric1", StateVersion: 3,
				Metric: &model.MetricState{ActivationState: "On", NumericValue: 120, HasNumericValue: true},
			}},
		},
		{
			Descriptor: model.Descriptor{Handle: "patctx", Kind: model.KindPatientContext, ParentHandle: "mds1"},
			States: []model.State{{
				DescriptorHandle: "patctx", MultiStateHandle: "inst1", StateVersion: 1,
				Context: &model.ContextState{ContextAssociation: "Assoc", Identification: []string{"mrn-123"}},
			}},
		},
	}
}

func TestDocument_roundTrip(t *testing.T) {
	entities := sampleEntities()
	doc := xmlcodec.EncodeDocument(7, "seq-1", entities)
	raw, err := xmlcodec.Marshal(doc)
	require.NoError(t, err)

	version, seq, decoded, err := xmlcodec.DecodeDocument(raw)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), version)
	assert.Equal(t, "seq-1", seq)
	require.Len(t, decoded, 3)

	byHandle := make(map[model.Handle]model.Entity)
	for _, e := range decoded {
		byHandle[e.Descriptor.Handle] = e
	}

	metric := byHandle["metric1"]
	require.NotNil(t, metric.Descriptor.Metric)
	assert.Equal(t, "mmHg", metric.Descriptor.Metric.Unit)
	require.Len(t, metric.States, 1)
	require.NotNil(t, metric.States[0].Metric)
	assert.True(t, metric.States[0].Metric.HasNumericValue)
	assert.Equal(t, 120.0, metric.States[0].Metric.NumericValue)

	ctx := byHandle["patctx"]
	require.Len(t, ctx.States, 1)
	assert.Equal(t, model.MultiStateHandle("inst1"), ctx.States[0].MultiStateHandle)
	assert.Equal(t, "Assoc", ctx.States[0].Context.ContextAssociation)
	assert.Equal(t, []string{"mrn-123"}, ctx.States[0].Context.Identification)
}

func TestDecodeDocument_unknownDescriptorKind(t *testing.T) {
	raw := []byte(`<?xml version="1.0"?>
<GetMdibResponse MdibVersion="1">
  <MdDescription>
    <Descriptor Handle="x1" xsi:type="pm:NotAKind" DescriptorVersion="0" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"></Descriptor>
  </MdDescription>
</GetMdibResponse>`)
	_, _, _, err := xmlcodec.DecodeDocument(raw)
	require.Error(t, err)
	var decErr *xmlcodec.DecodeError
	require.ErrorAs(t, err, &decErr)
	assert.Equal(t, xmlcodec.SchemaViolation, decErr.Kind)
}

func TestDecodeDocument_malformedXML(t *testing.T) {
	_, _, _, err := xmlcodec.DecodeDocument([]byte("<not-xml"))
	require.Error(t, err)
	var decErr *xmlcodec.DecodeError
	require.ErrorAs(t, err, &decErr)
	assert.Equal(t, xmlcodec.MalformedXML, decErr.Kind)
}
