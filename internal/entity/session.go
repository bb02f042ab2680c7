package entity

const (
	IdentityUnassigned Identity = ""
	IdentityX          Identity = "X"
	IdentityO          Identity = "O"
	IdentitySpectator  Identity = "spectator"
)

// Identity is the role a client holds in a room. It is fixed once assigned.
type Identity string

// Mark returns the mark a seated identity plays with.
func (that Identity) Mark() (Mark, bool) {
	switch that {
	case IdentityX:
		return MarkX, true
	case IdentityO:
		return MarkO, true
	default:
		return EmptyCell, false
	}
}

func (that Identity) IsSeated() bool {
	_, ok := that.Mark()
	return ok
}

func IdentityFor(mark Mark) Identity {
	switch mark {
	case MarkX:
		return IdentityX
	case MarkO:
		return IdentityO
	default:
		return IdentityUnassigned
	}
}

// Session is a client's private view of its participation in a room.
type Session struct {
	Identity Identity `json:"identity"`
	Name     string   `json:"name"`
	RoomID   string   `json:"room_id"`
	View     Room     `json:"view"`
}

func NewSession(identity Identity, name string, room Room) Session {
	return Session{
		Identity: identity,
		Name:     name,
		RoomID:   room.ID,
		View:     room.Clone(),
	}
}

func (that Session) IsJoined() bool {
	return that.Identity != IdentityUnassigned
}

// WithView replaces the observed room wholesale.
func (that Session) WithView(room Room) Session {
	that.View = room.Clone()
	return that
}

// OpponentName is empty for spectators and while the opposite seat is free.
func (that Session) OpponentName() string {
	mark, ok := that.Identity.Mark()
	if !ok {
		return ""
	}

	return that.View.PlayerName(mark.Opponent())
}
