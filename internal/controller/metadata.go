package controller

import (
	"path/filepath"

	"github.com/rewindhq/rewind/internal/jsonutil"
	"github.com/rewindhq/rewind/internal/paths"
)

// ConversationMetadataRecord associates a checkpoint name with the
// conversation-domain context that produced it (spec.md §3).
type ConversationMetadataRecord struct {
	AgentKind      string `json:"agent_kind"`
	SessionID      string `json:"session_id"`
	TranscriptPath string `json:"transcript_path"`
	LastEventID    string `json:"last_event_id"`
	UserPrompt     string `json:"user_prompt,omitempty"`
}

// ConversationMetadata maps checkpoint name to its conversation record
// (spec.md §6.1 conversation_metadata.json).
type ConversationMetadata map[string]ConversationMetadataRecord

func loadConversationMetadata(storageRoot string) (ConversationMetadata, error) {
	m := ConversationMetadata{}
	path := filepath.Join(storageRoot, paths.ConversationMetadataFileName)
	if err := jsonutil.ReadJSON(path, &m); err != nil {
		if !isNotExist(err) {
			return nil, err
		}
	}
	return m, nil
}

func saveConversationMetadata(storageRoot string, m ConversationMetadata) error {
	return jsonutil.WriteAtomic(filepath.Join(storageRoot, paths.ConversationMetadataFileName), m)
}

// RestoreHistoryEntry records one restore operation, enabling undo-of-restore
// (spec.md §3).
type RestoreHistoryEntry struct {
	Timestamp            string `json:"timestamp"`
	Checkpoint           string `json:"checkpoint"`
	BackupCheckpointName string `json:"backup_checkpoint_name"`
	TranscriptBackupPath string `json:"transcript_backup_path,omitempty"`
}

func loadRestoreHistory(storageRoot string) ([]RestoreHistoryEntry, error) {
	var entries []RestoreHistoryEntry
	path := filepath.Join(storageRoot, paths.RestoreHistoryFileName)
	if err := jsonutil.ReadJSON(path, &entries); err != nil {
		if !isNotExist(err) {
			return nil, err
		}
	}
	return entries, nil
}

func saveRestoreHistory(storageRoot string, entries []RestoreHistoryEntry) error {
	return jsonutil.WriteAtomic(filepath.Join(storageRoot, paths.RestoreHistoryFileName), entries)
}
