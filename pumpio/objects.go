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

package pumpio

import (
	"strings"
)

// Object type categories returned by ObjectTypeFromID.
const (
	ObjectActivity = "activity"
	ObjectComment  = "comment"
	ObjectNote     = "note"
	ObjectPerson   = "person"
)

// ActorPrefix is the scheme prefix of actor object ids.
const ActorPrefix = "acct:"

// ObjectTypeFromID classifies an opaque object id by its URI shape. An
// unrecognized shape yields the literal "unknown object type: <id>" marker
// string instead of an error, so callers can log it and move on. Existing
// consumers depend on that exact string.
func ObjectTypeFromID(oid string) string {
	switch {
	case strings.Contains(oid, "/comment/"):
		return ObjectComment
	case strings.HasPrefix(oid, ActorPrefix):
		return ObjectPerson
	case strings.Contains(oid, "/note/"):
		return ObjectNote
	// Legacy StatusNet form still seen on older deployments.
	case strings.Contains(oid, "/notice/"):
		return ObjectNote
	case strings.Contains(oid, "/person/"):
		return ObjectPerson
	case strings.Contains(oid, "/user/"):
		return ObjectPerson
	case strings.Contains(oid, "/activity/"):
		return ObjectActivity
	default:
		return "unknown object type: " + oid
	}
}

// HostFromUsername extracts the host part of a user@host style identifier.
// Identifiers without a recognizable host part (bare usernames, URLs, bare
// domains) yield the empty string.
func HostFromUsername(username string) string {
	pos := strings.Index(username, "@")
	if pos >= 0 && pos+1 < len(username) {
		host := username[pos+1:]
		if strings.ContainsAny(host, "/:") {
			return ""
		}
		return host
	}
	return ""
}

// usernameFromActorOID turns acct:user@host into user@host.
func usernameFromActorOID(oid string) string {
	return strings.TrimPrefix(oid, ActorPrefix)
}

// nicknameFromActorOID returns the bare nickname used in API paths.
func nicknameFromActorOID(oid string) string {
	username := usernameFromActorOID(oid)
	if pos := strings.Index(username, "@"); pos >= 0 {
		return username[:pos]
	}
	return username
}

// trimTrailingLineBreaks strips trailing HTML and literal line breaks from
// message bodies.
func trimTrailingLineBreaks(body string) string {
	for {
		trimmed := strings.TrimRight(body, " \t\r\n")
		switch {
		case strings.HasSuffix(trimmed, "<br/>"):
			trimmed = trimmed[:len(trimmed)-len("<br/>")]
		case strings.HasSuffix(trimmed, "<br />"):
			trimmed = trimmed[:len(trimmed)-len("<br />")]
		case strings.HasSuffix(trimmed, "<br>"):
			trimmed = trimmed[:len(trimmed)-len("<br>")]
		}
		if trimmed == body {
			return trimmed
		}
		body = trimmed
	}
}
