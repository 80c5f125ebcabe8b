package actor

import (
	"errors"
	"strings"
)

// ErrReservedSegmentName indicates a path segment was rejected because it
// begins with the reserved '$' prefix.
var ErrReservedSegmentName = errors.New("actor: path segments starting with '$' are reserved")

// ErrEmptySegmentName indicates an empty path segment was supplied.
var ErrEmptySegmentName = errors.New("actor: path segment must not be empty")

// GuardianKind identifies which of the three well-known root actors an
// ActorPath descends from.
type GuardianKind uint8

const (
	// GuardianRoot is the top-level guardian that supervises the system
	// and user guardians.
	GuardianRoot GuardianKind = iota

	// GuardianSystem is the guardian for system-internal actors; the core
	// itself spawns no actors under it.
	GuardianSystem

	// GuardianUser supervises every actor spawned by application code.
	GuardianUser
)

// String renders the guardian kind as it appears in a path URI.
func (g GuardianKind) String() string {
	switch g {
	case GuardianRoot:
		return "root"
	case GuardianSystem:
		return "system"
	case GuardianUser:
		return "user"
	default:
		return "unknown"
	}
}

// NewPathSegment validates a single path segment, rejecting the empty
// string and any name beginning with the reserved '$' prefix.
func NewPathSegment(name string) (string, error) {
	if name == "" {
		return "", ErrEmptySegmentName
	}
	if strings.HasPrefix(name, "$") {
		return "", ErrReservedSegmentName
	}
	return name, nil
}

// ActorPath is the hierarchical, human-readable address of an actor,
// rooted at one of the three guardians. Two paths are equal iff guardian,
// authority, and segments all match; a PID's uid participates in identity
// comparisons only through HashKey's IncludeUID flag, never through Equal,
// so a restarted actor keeps resolving under the same logical path.
type ActorPath struct {
	guardian  GuardianKind
	authority string // empty for a purely local, non-networked system
	segments  []string
	uid       uint64
}

// NewActorPath constructs a root-level path for the given guardian and
// authority (host:port, or a local system's uuid-stamped authority — see
// ActorSystem).
func NewActorPath(guardian GuardianKind, authority string) ActorPath {
	return ActorPath{
		guardian:  guardian,
		authority: authority,
	}
}

// Child returns a new path with segment appended, propagating this path's
// guardian, authority, and uid. It returns an error if segment is reserved
// or empty.
func (p ActorPath) Child(segment string) (ActorPath, error) {
	seg, err := NewPathSegment(segment)
	if err != nil {
		return ActorPath{}, err
	}

	child := ActorPath{
		guardian:  p.guardian,
		authority: p.authority,
		segments:  make([]string, len(p.segments)+1),
		uid:       p.uid,
	}
	copy(child.segments, p.segments)
	child.segments[len(p.segments)] = seg

	return child, nil
}

// WithUID returns a copy of this path carrying the given uid. Uids
// disambiguate successive actors spawned under the same name/path over
// time (e.g. for the receptionist's "is this registration stale"
// comparisons); they play no part in Equal.
func (p ActorPath) WithUID(uid uint64) ActorPath {
	p.uid = uid
	return p
}

// Guardian returns the root guardian this path descends from.
func (p ActorPath) Guardian() GuardianKind {
	return p.guardian
}

// Segments returns a copy of this path's ordered segments.
func (p ActorPath) Segments() []string {
	out := make([]string, len(p.segments))
	copy(out, p.segments)
	return out
}

// UID returns this path's disambiguating uid, and whether one was set.
func (p ActorPath) UID() (uint64, bool) {
	return p.uid, p.uid != 0
}

// Equal reports whether two paths name the same logical actor location.
// UID is intentionally excluded.
func (p ActorPath) Equal(other ActorPath) bool {
	if p.guardian != other.guardian || p.authority != other.authority {
		return false
	}
	if len(p.segments) != len(other.segments) {
		return false
	}
	for i := range p.segments {
		if p.segments[i] != other.segments[i] {
			return false
		}
	}
	return true
}

// HashKey returns a string suitable for use as a map key identifying this
// path. When includeUID is true the uid is folded into the key, so two
// successive incarnations at the same path hash differently — used by
// callers (e.g. receptionist occupant tracking) that must distinguish a
// replacement actor from the one it replaced.
func (p ActorPath) HashKey(includeUID bool) string {
	var b strings.Builder
	b.WriteString(p.guardian.String())
	b.WriteByte('|')
	b.WriteString(p.authority)
	for _, seg := range p.segments {
		b.WriteByte('/')
		b.WriteString(seg)
	}
	if includeUID {
		b.WriteByte('#')
		b.WriteString(uitoa(p.uid))
	}
	return b.String()
}

// String renders the canonical actor path URI:
// {scheme}://{system}@{host}:{port}/{guardian}/{segment}*[#{uid}].
// scheme is fixed to "actorcore" for an in-process system; authority
// supplies the "{system}@{host}:{port}" portion verbatim since the core
// treats it as an opaque, system-assigned label (see ActorSystem).
func (p ActorPath) String() string {
	var b strings.Builder
	b.WriteString("actorcore://")
	b.WriteString(p.authority)
	b.WriteByte('/')
	b.WriteString(p.guardian.String())
	for _, seg := range p.segments {
		b.WriteByte('/')
		b.WriteString(seg)
	}
	if p.uid != 0 {
		b.WriteByte('#')
		b.WriteString(uitoa(p.uid))
	}
	return b.String()
}

func uitoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
