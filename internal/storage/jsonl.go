package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"launchKit/internal/model"
)

// JSONLRecorder appends records to JSONL files, one file per record kind.
type JSONLRecorder struct {
	deploymentsPath string
	claimsPath      string
	mu              sync.Mutex
}

func NewJSONLRecorder(deploymentsPath, claimsPath string) *JSONLRecorder {
	return &JSONLRecorder{deploymentsPath: deploymentsPath, claimsPath: claimsPath}
}

// RecordDeployment appends a token-created record.
func (r *JSONLRecorder) RecordDeployment(record model.TokenCreatedRecord) error {
	return r.appendLine(r.deploymentsPath, record)
}

// RecordRewardClaim appends a reward-claim record.
func (r *JSONLRecorder) RecordRewardClaim(record model.RewardClaimRecord) error {
	return r.appendLine(r.claimsPath, record)
}

func (r *JSONLRecorder) appendLine(path string, record interface{}) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	if _, err := writer.Write(line); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	if err := writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	return nil
}
