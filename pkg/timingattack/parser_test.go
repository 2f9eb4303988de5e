package timingattack

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"
)

func TestCSVRoundTrip(t *testing.T) {
	data := Dataset{
		{Message: big.NewInt(42), Signature: big.NewInt(9001), Duration: 101.5},
		{Message: big.NewInt(7), Signature: big.NewInt(1234), Duration: 99},
	}
	bigMsg, _ := new(big.Int).SetString("72921395523034486567525736371230370633973787029153043254895253767587177948354404505015843041682240089", 10)
	data = append(data, &Record{Message: bigMsg, Signature: big.NewInt(1), Duration: 250.25})

	path := filepath.Join(t.TempDir(), "observations.csv")
	if err := WriteCSV(path, data); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}

	parsed, err := (&CSVParser{}).ParseDataset(path)
	if err != nil {
		t.Fatalf("ParseDataset failed: %v", err)
	}
	if len(parsed) != len(data) {
		t.Fatalf("parsed %d records, want %d", len(parsed), len(data))
	}
	for i, rec := range parsed {
		if rec.Message.Cmp(data[i].Message) != 0 {
			t.Errorf("record %d: message %s, want %s", i, rec.Message, data[i].Message)
		}
		if rec.Signature.Cmp(data[i].Signature) != 0 {
			t.Errorf("record %d: signature %s, want %s", i, rec.Signature, data[i].Signature)
		}
		if rec.Duration != data[i].Duration {
			t.Errorf("record %d: duration %v, want %v", i, rec.Duration, data[i].Duration)
		}
	}
}

func TestCSVParserMissingColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	if err := os.WriteFile(path, []byte("message,time\n5,1.0\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := (&CSVParser{}).ParseDataset(path); err == nil {
		t.Fatal("parser accepted a file without the required columns")
	}
}

func TestJSONParser(t *testing.T) {
	raw := `[
		{"message": "0x2a", "signature": "9001", "duration": 101.5},
		{"message": 7, "signature": "0x4d2", "duration": "99"}
	]`
	path := filepath.Join(t.TempDir(), "observations.json")
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	parsed, err := (&JSONParser{}).ParseDataset(path)
	if err != nil {
		t.Fatalf("ParseDataset failed: %v", err)
	}
	if len(parsed) != 2 {
		t.Fatalf("parsed %d records, want 2", len(parsed))
	}

	if parsed[0].Message.Cmp(big.NewInt(42)) != 0 {
		t.Errorf("hex message parsed as %s, want 42", parsed[0].Message)
	}
	if parsed[0].Signature.Cmp(big.NewInt(9001)) != 0 {
		t.Errorf("decimal signature parsed as %s, want 9001", parsed[0].Signature)
	}
	if parsed[1].Message.Cmp(big.NewInt(7)) != 0 {
		t.Errorf("numeric message parsed as %s, want 7", parsed[1].Message)
	}
	if parsed[1].Signature.Cmp(big.NewInt(1234)) != 0 {
		t.Errorf("hex signature parsed as %s, want 1234", parsed[1].Signature)
	}
	if parsed[1].Duration != 99 {
		t.Errorf("string duration parsed as %v, want 99", parsed[1].Duration)
	}
}
