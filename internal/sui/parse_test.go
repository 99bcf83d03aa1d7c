package sui

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/rewired-gh/carmarket/internal/models"
)

func envelope(digest, payload string, ts *Uint64) EventEnvelope {
	return EventEnvelope{
		ID:          EventID{TxDigest: digest, EventSeq: "0"},
		ParsedJSON:  json.RawMessage(payload),
		TimestampMs: ts,
	}
}

func TestParseEvent_ListingIDVariants(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{"id field", `{"id":"0xA","car_id":"0xC","price":"1","seller":"0xS"}`, "0xA"},
		{"listing_id field", `{"listing_id":"0xB","car_id":"0xC","price":"1","seller":"0xS"}`, "0xB"},
		{"uid wrapper", `{"id":{"id":"0xD"},"car_id":"0xC","seller":"0xS"}`, "0xD"},
		{"id wins over listing_id", `{"id":"0xE","listing_id":"0xF"}`, "0xE"},
		{"neither", `{"car_id":"0xC"}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := ParseEvent(envelope("tx", tt.payload, nil), models.KindListed)
			if err != nil {
				t.Fatalf("ParseEvent() error = %v", err)
			}
			if e.ListingID != tt.want {
				t.Errorf("ListingID = %q, want %q", e.ListingID, tt.want)
			}
		})
	}
}

func TestParseEvent_Defaults(t *testing.T) {
	e, err := ParseEvent(envelope("tx", `{}`, nil), models.KindBought)
	if err != nil {
		t.Fatalf("ParseEvent() error = %v", err)
	}
	if e.CarID != models.Unknown || e.Actor != models.Unknown || e.Price != 0 {
		t.Errorf("defaults not applied: %+v", e)
	}
	if !e.Timestamp.IsZero() {
		t.Errorf("missing timestamp should stay zero, got %v", e.Timestamp)
	}
}

func TestParseEvent_BuyerIsActor(t *testing.T) {
	ts := Uint64(1_700_000_000_123)
	e, err := ParseEvent(envelope("tx", `{"car_id":"0xC","price":42,"buyer":"0xB","seller":"0xS"}`, &ts), models.KindBought)
	if err != nil {
		t.Fatalf("ParseEvent() error = %v", err)
	}
	if e.Actor != "0xB" || e.Seller != "0xS" || e.Price != 42 {
		t.Errorf("unexpected event: %+v", e)
	}
	if e.Timestamp.UnixMilli() != 1_700_000_000_123 {
		t.Errorf("timestamp = %d", e.Timestamp.UnixMilli())
	}
}

func TestParseEvent_Rejects(t *testing.T) {
	for _, payload := range []string{``, `null`, `"x"`, `[1,2]`, `{"price":`} {
		_, err := ParseEvent(envelope("tx", payload, nil), models.KindListed)
		if !errors.Is(err, ErrMalformed) {
			t.Errorf("ParseEvent(%q) error = %v, want ErrMalformed", payload, err)
		}
	}
}

func TestUint64_Unmarshal(t *testing.T) {
	tests := []struct {
		in   string
		want uint64
	}{
		{`"123"`, 123},
		{`123`, 123},
		{`null`, 0},
		{`"abc"`, 0},
		{`-5`, 0},
	}
	for _, tt := range tests {
		var u Uint64
		if err := json.Unmarshal([]byte(tt.in), &u); err != nil {
			t.Fatalf("Unmarshal(%s) error = %v", tt.in, err)
		}
		if uint64(u) != tt.want {
			t.Errorf("Unmarshal(%s) = %d, want %d", tt.in, u, tt.want)
		}
	}
}

func objectWithFields(id, fields string) *ObjectData {
	var f map[string]json.RawMessage
	if err := json.Unmarshal([]byte(fields), &f); err != nil {
		panic(err)
	}
	return &ObjectData{ObjectID: id, Content: &MoveContent{DataType: "moveObject", Fields: f}}
}

func TestParseListing_CarShapes(t *testing.T) {
	nested := objectWithFields("0xL", `{"price":"5","seller":"0xS","car":{"type":"Car","fields":{"id":{"id":"0xC"},"name":"N","speed":"7"}}}`)
	flat := objectWithFields("0xL", `{"price":"5","seller":"0xS","car":{"id":{"id":"0xC"},"name":"N","speed":7}}`)

	for name, obj := range map[string]*ObjectData{"nested": nested, "flat": flat} {
		l, err := ParseListing(obj)
		if err != nil {
			t.Fatalf("%s: ParseListing() error = %v", name, err)
		}
		if l.CarID != "0xC" || l.Name != "N" || l.Speed != 7 || l.Price != 5 || l.Seller != "0xS" {
			t.Errorf("%s: unexpected listing %+v", name, l)
		}
	}
}

func TestParseListing_Rejects(t *testing.T) {
	cases := map[string]*ObjectData{
		"nil":        nil,
		"no content": {ObjectID: "0xL"},
		"no car":     objectWithFields("0xL", `{"price":"5","seller":"0xS"}`),
		"car string": objectWithFields("0xL", `{"price":"5","seller":"0xS","car":"0xC"}`),
	}
	for name, obj := range cases {
		if _, err := ParseListing(obj); !errors.Is(err, ErrMalformed) {
			t.Errorf("%s: error = %v, want ErrMalformed", name, err)
		}
	}
}

func TestParseListing_UnknownName(t *testing.T) {
	l, err := ParseListing(objectWithFields("0xL", `{"car":{"fields":{}}}`))
	if err != nil {
		t.Fatalf("ParseListing() error = %v", err)
	}
	if l.Name != unknownCarName {
		t.Errorf("Name = %q, want %q", l.Name, unknownCarName)
	}
}
