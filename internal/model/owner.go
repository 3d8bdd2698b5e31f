package model

import "fmt"

type OwnerKind string

const (
	OwnerKindProfile OwnerKind = "profile"
	OwnerKindPost    OwnerKind = "post"
)

// OwnerRef identifies the single slot an image can be attached to: a user's
// profile image or one ordered slot of a post.
type OwnerRef struct {
	Kind OwnerKind
	ID   int64
	Slot int // display order, post owners only
}

func ProfileOwner(userID int64) OwnerRef {
	return OwnerRef{Kind: OwnerKindProfile, ID: userID}
}

func PostOwner(postID int64, slot int) OwnerRef {
	if slot < 1 {
		slot = 1
	}
	return OwnerRef{Kind: OwnerKindPost, ID: postID, Slot: slot}
}

func (o OwnerRef) String() string {
	if o.Kind == OwnerKindPost {
		return fmt.Sprintf("post:%d#%d", o.ID, o.Slot)
	}
	return fmt.Sprintf("%s:%d", o.Kind, o.ID)
}
