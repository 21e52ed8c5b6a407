package models

import (
	"encoding/json"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Visibility controls who may view a photo. Levels are ordered: a
// query with floor Friends returns photos at Friends or Public.
type Visibility int

const (
	VisibilityPrivate Visibility = iota // owner only
	VisibilityFriends                   // owner and anyone on the owner's friends list
	VisibilityPublic                    // anyone
)

// String returns the lowercase name used on the API surface.
func (v Visibility) String() string {
	switch v {
	case VisibilityPrivate:
		return "private"
	case VisibilityFriends:
		return "friends"
	case VisibilityPublic:
		return "public"
	default:
		return fmt.Sprintf("visibility(%d)", int(v))
	}
}

// ParseVisibility parses the API string form of a visibility level.
func ParseVisibility(s string) (Visibility, error) {
	switch s {
	case "private":
		return VisibilityPrivate, nil
	case "friends":
		return VisibilityFriends, nil
	case "public":
		return VisibilityPublic, nil
	default:
		return 0, fmt.Errorf("invalid visibility %q", s)
	}
}

// MarshalJSON encodes the level as its string name.
func (v Visibility) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

// UnmarshalJSON decodes the string name back into a level.
func (v *Visibility) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseVisibility(s)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Outcome is the result of an authorization-gated store operation.
// It keeps unauthorized attempts distinguishable from benign no-ops
// instead of collapsing everything into a single boolean.
type Outcome int

const (
	OutcomeOK           Outcome = iota // the record was changed
	OutcomeNoChange                    // already in the requested state
	OutcomeUnauthorized                // actor is not allowed to perform the operation
	OutcomeNotFound                    // the record does not exist
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeNoChange:
		return "no_change"
	case OutcomeUnauthorized:
		return "unauthorized"
	case OutcomeNotFound:
		return "not_found"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// User represents an account in the system. Usernames are the natural
// key: friends lists and photo ownership reference users by name, not
// by object id.
type User struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Username string             `bson:"Username" json:"username"`
	Friends  []string           `bson:"Friends" json:"friends"`
}

// HasFriend reports whether name is on this user's friends list.
func (u *User) HasFriend(name string) bool {
	for _, f := range u.Friends {
		if f == name {
			return true
		}
	}
	return false
}

// Clone returns a deep copy, so store operations can hand back an
// updated record without aliasing the caller's copy.
func (u *User) Clone() *User {
	c := *u
	c.Friends = append([]string(nil), u.Friends...)
	return &c
}

// Photo represents one uploaded photograph. The image bytes live in
// the blob store under ImageID; the document holds metadata only,
// since images can exceed the single-document size limit.
type Photo struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Owner      string             `bson:"Owner" json:"owner"`
	Title      string             `bson:"Title" json:"title,omitempty"`
	Tags       []string           `bson:"Tags" json:"tags"`
	Comments   []string           `bson:"Comments" json:"comments"`
	Timestamp  int64              `bson:"Timestamp" json:"timestamp"`
	Visibility Visibility         `bson:"Visibility" json:"visibility"`
	ImageID    string             `bson:"ImageID" json:"-"`
}

// HasTag reports whether tag is attached to this photo.
func (p *Photo) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the photo metadata.
func (p *Photo) Clone() *Photo {
	c := *p
	c.Tags = append([]string(nil), p.Tags...)
	c.Comments = append([]string(nil), p.Comments...)
	return &c
}
