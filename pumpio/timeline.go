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
	"context"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/fedisync/fedisync/origins"
)

// FetchTimeline fetches one page of the given timeline routine and returns
// the normalized items in the order the remote sent them. A malformed
// entry inside an otherwise valid items array is skipped with a warning;
// a malformed response as a whole is a connection error.
func (c *Client) FetchTimeline(ctx context.Context, routine origins.Routine, since Position, limit int, actorOID string) ([]TimelineItem, error) {
	if !c.Supports(routine) {
		return nil, fmt.Errorf("%w: %s", ErrRoutineUnsupported, routine)
	}
	path, ok := apiPath(routine, nicknameFromActorOID(actorOID))
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRoutineUnsupported, routine)
	}

	body, err := c.get(ctx, path, &timelineQuery{Since: string(since), Count: limit})
	if err != nil {
		return nil, err
	}
	items, err := c.parseTimeline(body)
	if err != nil {
		return nil, newConnectionError(c.origin.BaseURL()+path, err.Error(), ErrBadResponse)
	}
	c.Logger.Debug().
		Str("routine", string(routine)).
		Str("since", string(since)).
		Int("item_count", len(items)).
		Msg("Fetched timeline")
	return items, nil
}

// FetchFollowed returns the list of users followed by the given actor.
func (c *Client) FetchFollowed(ctx context.Context, actorOID string) ([]User, error) {
	if !c.Supports(origins.RoutineGetFriends) {
		return nil, fmt.Errorf("%w: %s", ErrRoutineUnsupported, origins.RoutineGetFriends)
	}
	path, _ := apiPath(origins.RoutineGetFriends, nicknameFromActorOID(actorOID))

	body, err := c.get(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() || !root.Get("items").IsArray() {
		return nil, newConnectionError(c.origin.BaseURL()+path, "response has no items array", ErrBadResponse)
	}

	var users []User
	root.Get("items").ForEach(func(_, item gjson.Result) bool {
		user := parseUser(item)
		if user.OID == "" {
			c.Logger.Warn().Str("item", item.Raw).Msg("Skipping user item without id")
			return true
		}
		// Every entry of the following collection is followed by definition.
		user.FollowedByReader = TriStateTrue
		users = append(users, user)
		return true
	})
	return users, nil
}

func (c *Client) parseTimeline(body []byte) ([]TimelineItem, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid JSON")
	}
	root := gjson.ParseBytes(body)
	items := root.Get("items")
	if !items.IsArray() {
		return nil, fmt.Errorf("response has no items array")
	}

	var timeline []TimelineItem
	items.ForEach(func(_, activity gjson.Result) bool {
		item, ok := c.activityToItem(activity)
		if !ok {
			c.Logger.Warn().Str("activity", activity.Raw).Msg("Skipping malformed activity")
			return true
		}
		timeline = append(timeline, item)
		return true
	})
	return timeline, nil
}

// activityToItem normalizes one activity into a timeline item. Person
// objects become USER items carrying the follow relationship; everything
// else becomes a MESSAGE item.
func (c *Client) activityToItem(activity gjson.Result) (TimelineItem, bool) {
	object := activity.Get("object")
	if !object.IsObject() {
		return TimelineItem{}, false
	}
	oid := object.Get("id").Str
	if oid == "" {
		return TimelineItem{}, false
	}
	objectType := object.Get("objectType").Str
	if objectType == "" {
		objectType = ObjectTypeFromID(oid)
	}
	verb := activity.Get("verb").Str
	actor := parseUser(activity.Get("actor"))

	if objectType == ObjectPerson {
		user := parseUser(object)
		switch verb {
		case "follow":
			user.FollowedByReader = TriStateTrue
		case "stop-following", "unfollow":
			user.FollowedByReader = TriStateFalse
		}
		if actor.OID != "" {
			user.Reader = &actor
		}
		return TimelineItem{Type: ItemTypeUser, User: &user}, true
	}

	msg := Message{
		OID:  oid,
		Body: trimTrailingLineBreaks(object.Get("content").Str),
	}
	if published := activity.Get("published").Str; published != "" {
		if ts, err := time.Parse(time.RFC3339, published); err == nil {
			msg.SentAt = ts
		}
	}
	if verb == "favorite" || verb == "like" {
		msg.FavoritedByReader = true
	}
	if actor.OID != "" {
		msg.Reader = &actor
	}
	return TimelineItem{Type: ItemTypeMessage, Message: &msg}, true
}

func parseUser(person gjson.Result) User {
	oid := person.Get("id").Str
	user := User{
		OID:         oid,
		Username:    usernameFromActorOID(oid),
		RealName:    person.Get("displayName").Str,
		Description: person.Get("summary").Str,
	}
	if followed := person.Get("pump_io.followed"); followed.Exists() {
		user.FollowedByReader = TriStateFromBool(followed.Bool())
	}
	return user
}
