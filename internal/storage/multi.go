package storage

import "launchKit/internal/model"

// MultiRecorder fans each record out to every underlying recorder, stopping
// at the first error.
type MultiRecorder struct {
	recorders []Recorder
}

func NewMultiRecorder(recorders ...Recorder) *MultiRecorder {
	return &MultiRecorder{recorders: recorders}
}

func (m *MultiRecorder) RecordDeployment(record model.TokenCreatedRecord) error {
	for _, r := range m.recorders {
		if err := r.RecordDeployment(record); err != nil {
			return err
		}
	}
	return nil
}

func (m *MultiRecorder) RecordRewardClaim(record model.RewardClaimRecord) error {
	for _, r := range m.recorders {
		if err := r.RecordRewardClaim(record); err != nil {
			return err
		}
	}
	return nil
}
