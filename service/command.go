// fedisync - a federated social network synchronization daemon.
// Copyright (C) 2026 Fedisync contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package service runs the durable command queue and the workers that
// drain it into protocol fetches and timeline updates.
package service

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fedisync/fedisync/timelines"
)

// CommandCode identifies what a queued command does.
type CommandCode string

const (
	CommandUnknown       CommandCode = ""
	CommandFetchTimeline CommandCode = "fetch_timeline"
	CommandFetchFollowed CommandCode = "fetch_followed"
)

// QueueType partitions the command queue.
type QueueType string

const (
	QueueTypeUnknown QueueType = ""
	QueueTypeCurrent QueueType = "current"
	QueueTypeRetry   QueueType = "retry"
	QueueTypeError   QueueType = "error"
)

// DrainedQueueTypes are the queue types a syncer drains, in tier order.
var DrainedQueueTypes = []QueueType{QueueTypeCurrent, QueueTypeRetry}

// Acronym is the short code used in shared-subject summaries.
func (qt QueueType) Acronym() string {
	switch qt {
	case QueueTypeCurrent:
		return "C"
	case QueueTypeRetry:
		return "R"
	case QueueTypeError:
		return "E"
	default:
		return "U"
	}
}

// CommandData is the payload of one queued synchronization command. Its
// creation timestamp, together with the queue type, is the entry identity.
type CommandData struct {
	Code      CommandCode
	UUID      uuid.UUID
	CreatedAt time.Time
	Timeline  timelines.Reference
	Retries   int64
}

// NewCommand creates a command for the given timeline, stamped now.
func NewCommand(code CommandCode, timeline timelines.Reference) CommandData {
	return CommandData{
		Code:      code,
		UUID:      uuid.New(),
		CreatedAt: time.Now(),
		Timeline:  timeline,
	}
}

func (cmd CommandData) IsEmpty() bool {
	return cmd.Code == CommandUnknown && cmd.CreatedAt.IsZero()
}

// Summary is the human-readable one-line form used in diagnostics.
func (cmd CommandData) Summary() string {
	if cmd.IsEmpty() {
		return "empty command"
	}
	summary := string(cmd.Code)
	if cmd.Timeline.Type.IsValid() {
		summary += " " + string(cmd.Timeline.Type)
	}
	if cmd.Timeline.AccountName != "" {
		summary += " of " + cmd.Timeline.AccountName
	}
	if cmd.Timeline.SearchQuery != "" {
		summary += fmt.Sprintf(" search:%q", cmd.Timeline.SearchQuery)
	}
	return summary
}

// EntryKey is the comparable dedup identity of a queue entry.
type EntryKey struct {
	QueueType QueueType
	CreatedAt int64
}

// QueueEntry wraps a command with the queue it sits in.
type QueueEntry struct {
	Type    QueueType
	Command CommandData
}

// EmptyEntry is the sentinel for "no command".
func EmptyEntry() QueueEntry {
	return QueueEntry{Type: QueueTypeUnknown}
}

func (e QueueEntry) IsEmpty() bool {
	return e.Type == QueueTypeUnknown && e.Command.IsEmpty()
}

// Key returns the identity used for deduplication: two entries with the
// same queue type and creation instant are the same entry.
func (e QueueEntry) Key() EntryKey {
	return EntryKey{QueueType: e.Type, CreatedAt: e.Command.CreatedAt.UnixMilli()}
}

// SharedSubject is the short export label: queue acronym plus summary.
func (e QueueEntry) SharedSubject() string {
	return e.Type.Acronym() + "; " + e.Command.Summary()
}

// SharedText is the long export form.
func (e QueueEntry) SharedText() string {
	return fmt.Sprintf("%s; %s; created:%s; uuid:%s",
		e.Type.Acronym(), e.Command.Summary(),
		e.Command.CreatedAt.UTC().Format(time.RFC3339), e.Command.UUID)
}
