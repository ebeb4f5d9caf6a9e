package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"helixsim/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// CurrentVersion is the version stamp written on new records.
func CurrentVersion() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

func EncodeMutationRun(run model.MutationRun) ([]byte, error) {
	return json.Marshal(run)
}

func DecodeMutationRun(data []byte) (model.MutationRun, error) {
	var run model.MutationRun
	if err := json.Unmarshal(data, &run); err != nil {
		return model.MutationRun{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.MutationRun{}, err
	}
	return run, nil
}

func EncodeGrowthRun(run model.GrowthRun) ([]byte, error) {
	return json.Marshal(run)
}

func DecodeGrowthRun(data []byte) (model.GrowthRun, error) {
	var run model.GrowthRun
	if err := json.Unmarshal(data, &run); err != nil {
		return model.GrowthRun{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.GrowthRun{}, err
	}
	return run, nil
}

func EncodeResistanceReport(report model.ResistanceReport) ([]byte, error) {
	return json.Marshal(report)
}

func DecodeResistanceReport(data []byte) (model.ResistanceReport, error) {
	var report model.ResistanceReport
	if err := json.Unmarshal(data, &report); err != nil {
		return model.ResistanceReport{}, err
	}
	if err := checkVersion(report.VersionedRecord); err != nil {
		return model.ResistanceReport{}, err
	}
	return report, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return fmt.Errorf("%w: schema=%d codec=%d", ErrVersionMismatch, v.SchemaVersion, v.CodecVersion)
	}
	return nil
}
