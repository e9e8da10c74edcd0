package notes

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/translation-helps-proxy/internal/normalize"
)

const notesBody = `{
  "items": [
    {"Reference": "front:intro", "Note": "Introduction to John"},
    {"Reference": "3:intro", "Note": "Chapter 3 overview"},
    {"Reference": "3:16", "Note": "For God so loved"},
    {"Reference": "3:16", "Note": "only begotten <Son>"}
  ],
  "metadata": {"totalCount": 4, "source": "TN"},
  "reference": "John 3:16",
  "language": "en"
}`

type notesDoc struct {
	Items []struct {
		Reference string `json:"Reference"`
		Note      string `json:"Note"`
	} `json:"items"`
	Metadata struct {
		TotalCount int    `json:"totalCount"`
		Source     string `json:"source"`
	} `json:"metadata"`
	Reference string `json:"reference"`
	Language  string `json:"language"`
}

func decode(t *testing.T, s string) notesDoc {
	t.Helper()
	var d notesDoc
	require.NoError(t, json.Unmarshal([]byte(s), &d))
	return d
}

func TestIsIntroReference(t *testing.T) {
	for _, ref := range []string{"front:intro", "1:intro", "3:intro", "150:intro"} {
		assert.True(t, IsIntroReference(ref), ref)
	}
	for _, ref := range []string{"3:16", "front:1", "intro", ":intro", "3:intro2", "x3:intro", "Front:intro", "3:Intro", ""} {
		assert.False(t, IsIntroReference(ref), ref)
	}
}

func TestPrune_DropsIntroNotes(t *testing.T) {
	in := normalize.Normalize(json.RawMessage(notesBody))
	got := Prune(in, true)
	require.Len(t, got, 1)

	d := decode(t, got[0].Value)
	require.Len(t, d.Items, 2)
	for _, it := range d.Items {
		assert.Equal(t, "3:16", it.Reference)
	}
	assert.Equal(t, 2, d.Metadata.TotalCount)
	assert.Equal(t, "TN", d.Metadata.Source)
	assert.Equal(t, "John 3:16", d.Reference)
	assert.Equal(t, "en", d.Language)
	assert.Contains(t, got[0].Value, "<Son>", "HTML characters stay unescaped")
}

func TestPrune_Disabled(t *testing.T) {
	in := normalize.Normalize(json.RawMessage(notesBody))
	got := Prune(in, false)
	assert.Equal(t, in, got)
	assert.Len(t, decode(t, got[0].Value).Items, 4)
}

func TestPrune_Idempotent(t *testing.T) {
	in := normalize.Normalize(json.RawMessage(notesBody))
	once := Prune(in, true)
	twice := Prune(once, true)
	assert.Equal(t, once, twice)
}

func TestPrune_CountConsistency(t *testing.T) {
	bodies := []string{
		`{"items":[],"metadata":{"totalCount":7}}`,
		`{"items":[{"reference":"front:intro"}],"metadata":{}}`,
		`{"items":[{"reference":"1:1"},{"Reference":"1:intro"},"loose"],"metadata":{"totalCount":"n/a"}}`,
	}
	for _, body := range bodies {
		got := Prune(normalize.Text(body), true)
		var d struct {
			Items    []json.RawMessage `json:"items"`
			Metadata struct {
				TotalCount int `json:"totalCount"`
			} `json:"metadata"`
		}
		require.NoError(t, json.Unmarshal([]byte(got[0].Value), &d), body)
		assert.Equal(t, len(d.Items), d.Metadata.TotalCount, body)
	}
}

func TestPrune_LowercaseReferenceWins(t *testing.T) {
	body := `{"items":[{"reference":"2:5","Reference":"front:intro"}],"metadata":{"totalCount":1}}`
	got := Prune(normalize.Text(body), true)
	assert.Equal(t, body, got[0].Value, "verse note kept and block untouched")
}

func TestPrune_NullOrNonStringReferenceFallsBack(t *testing.T) {
	body := `{"items":[
		{"reference":null,"Reference":"front:intro"},
		{"reference":7,"Reference":"3:intro"},
		{"reference":null,"Reference":"3:16"}
	],"metadata":{"totalCount":3}}`
	got := Prune(normalize.Text(body), true)

	var d struct {
		Items []struct {
			Reference string `json:"Reference"`
		} `json:"items"`
		Metadata struct {
			TotalCount int `json:"totalCount"`
		} `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal([]byte(got[0].Value), &d))
	require.Len(t, d.Items, 1)
	assert.Equal(t, "3:16", d.Items[0].Reference)
	assert.Equal(t, 1, d.Metadata.TotalCount)
}

func TestPrune_LeavesOtherBlocksAlone(t *testing.T) {
	in := normalize.Result{
		{Kind: normalize.KindText, Value: "ULT: For God so loved"},
		{Kind: normalize.KindText, Value: `{"items":[{"Reference":"front:intro"}]}`},
		{Kind: normalize.KindText, Value: `{"items":"x","metadata":{}}`},
		{Kind: normalize.KindText, Value: `{"items":[],"metadata":[]}`},
		{Kind: normalize.KindText, Value: `[{"Reference":"front:intro"}]`},
	}
	got := Prune(in, true)
	assert.Equal(t, in, got)
}

func TestPrune_DoesNotMutateInput(t *testing.T) {
	in := normalize.Text(notesBody)
	_ = Prune(in, true)
	assert.Equal(t, notesBody, in[0].Value)
}
