package storage

import (
	"errors"
	"testing"

	"stipple/internal/model"
)

func TestRunCodecRoundTrip(t *testing.T) {
	data, err := EncodeRun(sampleRun("run-1", "2024-01-01T00:00:00Z"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	run, err := DecodeRun(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if run.ID != "run-1" || run.Width != 100 || run.Config.Survivors != 4 {
		t.Fatalf("unexpected run: %+v", run)
	}
}

func TestDecodeRejectsVersionMismatch(t *testing.T) {
	run := sampleRun("run-1", "")
	run.SchemaVersion = CurrentSchemaVersion + 1
	data, err := EncodeRun(run)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeRun(data); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected version mismatch, got %v", err)
	}

	best := sampleBest("run-1")
	best.VersionedRecord = model.VersionedRecord{}
	data, err = EncodeBestGene(best)
	if err != nil {
		t.Fatalf("encode best: %v", err)
	}
	if _, err := DecodeBestGene(data); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected version mismatch for best gene, got %v", err)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := DecodeRun([]byte("{")); err == nil {
		t.Fatal("expected decode error")
	}
	if _, err := DecodeFitnessHistory([]byte("[1,")); err == nil {
		t.Fatal("expected history decode error")
	}
}
