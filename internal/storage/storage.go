package storage

import "launchKit/internal/model"

// Recorder is a sink for the engine's observable records.
type Recorder interface {
	RecordDeployment(record model.TokenCreatedRecord) error
	RecordRewardClaim(record model.RewardClaimRecord) error
}
