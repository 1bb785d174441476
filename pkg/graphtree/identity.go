package graphtree

import "strings"

// NodeKind discriminates the four identifier shapes. A NodeID carries its
// kind from construction on, so downstream code never re-parses strings to
// decide what a node is.
type NodeKind int

const (
	// KindRoot is a top-level record node: "{entity}-{id}".
	KindRoot NodeKind = iota
	// KindFK is an outbound reference node:
	// "fk-{targetEntity}-{targetId}-from-{parentId}".
	KindFK
	// KindBackRefGroup is an inbound reference group:
	// "backref-{refEntity}-to-{parentEntity}-{parentId}".
	KindBackRefGroup
	// KindBackRefRow is a single inbound row:
	// "backref-row-{refEntity}-{rowId}-in-{parentEntity}-{parentId}".
	KindBackRefRow
)

func (k NodeKind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindFK:
		return "fk"
	case KindBackRefGroup:
		return "backref-group"
	case KindBackRefRow:
		return "backref-row"
	default:
		return "unknown"
	}
}

const (
	fkPrefix         = "fk-"
	backRefPrefix    = "backref-"
	backRefRowPrefix = "backref-row-"
	fromMarker       = "-from-"
	toMarker         = "-to-"
	inMarker         = "-in-"
)

// NodeID identifies one visual occurrence of a record or reference within
// the tree. Identities are path-scoped, not record-scoped: the same
// (entity,id) pair under two different parents yields two distinct
// identities with independent expansion state.
//
// The string form (String/ParseID) is a stable external key: other
// components index by string equality, so the field order and separators
// above are a hard contract.
type NodeID struct {
	Kind         NodeKind
	Entity       string
	ID           string
	ParentEntity string
	ParentID     string
}

// RootID builds the identity of a top-level record node.
func RootID(entity, id string) NodeID {
	return NodeID{Kind: KindRoot, Entity: entity, ID: id}
}

// FKID builds the identity of an outbound reference node. The parent is
// anchored by id only; the grammar does not carry the parent entity for
// this shape.
func FKID(targetEntity, targetID, parentID string) NodeID {
	return NodeID{Kind: KindFK, Entity: targetEntity, ID: targetID, ParentID: parentID}
}

// BackRefGroupID builds the identity of an inbound reference group node.
func BackRefGroupID(refEntity, parentEntity, parentID string) NodeID {
	return NodeID{Kind: KindBackRefGroup, Entity: refEntity, ParentEntity: parentEntity, ParentID: parentID}
}

// BackRefRowID builds the identity of a single inbound row node.
func BackRefRowID(refEntity, rowID, parentEntity, parentID string) NodeID {
	return NodeID{Kind: KindBackRefRow, Entity: refEntity, ID: rowID, ParentEntity: parentEntity, ParentID: parentID}
}

// IsZero reports whether the identity is unset (attribute nodes carry no
// identity).
func (n NodeID) IsZero() bool {
	return n.Entity == "" && n.ID == "" && n.ParentEntity == "" && n.ParentID == ""
}

// String renders the canonical identifier.
func (n NodeID) String() string {
	var b strings.Builder
	switch n.Kind {
	case KindFK:
		b.WriteString(fkPrefix)
		b.WriteString(n.Entity)
		b.WriteByte('-')
		b.WriteString(n.ID)
		b.WriteString(fromMarker)
		b.WriteString(n.ParentID)
	case KindBackRefGroup:
		b.WriteString(backRefPrefix)
		b.WriteString(n.Entity)
		b.WriteString(toMarker)
		b.WriteString(n.ParentEntity)
		b.WriteByte('-')
		b.WriteString(n.ParentID)
	case KindBackRefRow:
		b.WriteString(backRefRowPrefix)
		b.WriteString(n.Entity)
		b.WriteByte('-')
		b.WriteString(n.ID)
		b.WriteString(inMarker)
		b.WriteString(n.ParentEntity)
		b.WriteByte('-')
		b.WriteString(n.ParentID)
	default:
		b.WriteString(n.Entity)
		b.WriteByte('-')
		b.WriteString(n.ID)
	}
	return b.String()
}

// ParseID inverts String over the four identifier shapes. Dispatch is by
// reserved prefix ("backref-row-", "backref-", "fk-"), then by the shape's
// marker, splitting on the marker's last occurrence; entity/id pairs split
// on their last hyphen. Entity names may therefore contain hyphens, while
// ids in non-root positions must not, a documented limit of the string
// grammar. Anything not matching one of the four shapes fails with
// *MalformedIDError.
func ParseID(s string) (NodeID, error) {
	switch {
	case strings.HasPrefix(s, backRefRowPrefix):
		rest := s[len(backRefRowPrefix):]
		left, right, ok := splitLastMarker(rest, inMarker)
		if !ok {
			return NodeID{}, &MalformedIDError{Input: s, Reason: "back-reference row without '-in-' marker"}
		}
		refEntity, rowID, ok := splitLastHyphen(left)
		if !ok {
			return NodeID{}, &MalformedIDError{Input: s, Reason: "back-reference row missing entity or row id"}
		}
		parentEntity, parentID, ok := splitLastHyphen(right)
		if !ok {
			return NodeID{}, &MalformedIDError{Input: s, Reason: "back-reference row missing parent entity or id"}
		}
		return BackRefRowID(refEntity, rowID, parentEntity, parentID), nil

	case strings.HasPrefix(s, backRefPrefix):
		rest := s[len(backRefPrefix):]
		left, right, ok := splitLastMarker(rest, toMarker)
		if !ok || left == "" {
			return NodeID{}, &MalformedIDError{Input: s, Reason: "back-reference group without '-to-' marker"}
		}
		parentEntity, parentID, ok := splitLastHyphen(right)
		if !ok {
			return NodeID{}, &MalformedIDError{Input: s, Reason: "back-reference group missing parent entity or id"}
		}
		return BackRefGroupID(left, parentEntity, parentID), nil

	case strings.HasPrefix(s, fkPrefix):
		rest := s[len(fkPrefix):]
		left, parentID, ok := splitLastMarker(rest, fromMarker)
		if !ok || parentID == "" {
			return NodeID{}, &MalformedIDError{Input: s, Reason: "fk node without '-from-' marker"}
		}
		target, targetID, ok := splitLastHyphen(left)
		if !ok {
			return NodeID{}, &MalformedIDError{Input: s, Reason: "fk node missing target entity or id"}
		}
		return FKID(target, targetID, parentID), nil

	default:
		entity, id, ok := splitLastHyphen(s)
		if !ok {
			return NodeID{}, &MalformedIDError{Input: s, Reason: "root node must be '{entity}-{id}'"}
		}
		return RootID(entity, id), nil
	}
}

// splitLastMarker splits s around the last occurrence of marker. Both
// halves must be non-empty.
func splitLastMarker(s, marker string) (left, right string, ok bool) {
	i := strings.LastIndex(s, marker)
	if i <= 0 || i+len(marker) >= len(s) {
		return "", "", false
	}
	return s[:i], s[i+len(marker):], true
}

// splitLastHyphen splits "{name}-{id}" on the final hyphen.
func splitLastHyphen(s string) (name, id string, ok bool) {
	i := strings.LastIndexByte(s, '-')
	if i <= 0 || i == len(s)-1 {
		return "", "", false
	}
	return s[:i], s[i+1:], true
}
