package game

import (
	"github.com/ashureev/deepfake-defender/internal/domain"
)

// Unlimited is reported by sources that never run out.
const Unlimited = int(^uint(0) >> 1)

// View is what the display surface renders for one session.
type View struct {
	Status          Status         `json:"status"`
	RoundID         string         `json:"round_id,omitempty"`
	LeftImageID     string         `json:"left_image_id,omitempty"`
	RightImageID    string         `json:"right_image_id,omitempty"`
	Answered        bool           `json:"answered"`
	Attempts        int            `json:"attempts"`
	AISide          *domain.Side   `json:"ai_side,omitempty"`
	RoundsCompleted int            `json:"rounds_completed"`
	CorrectCount    int            `json:"correct_count"`
	WrongGuesses    int            `json:"wrong_guesses"`
	Remaining       map[string]int `json:"remaining"`
	Complete        bool           `json:"complete"`
	Tip             string         `json:"tip,omitempty"`
}

// Snapshot builds the view of st. The AI side is only revealed once the round
// is answered, and a tip is attached when the game is complete.
func (m *Manager) Snapshot(st *State) View {
	v := View{
		Status:          st.Status(),
		RoundsCompleted: st.RoundsCompleted,
		CorrectCount:    st.CorrectCount,
		WrongGuesses:    st.WrongGuesses,
		Remaining:       make(map[string]int, len(domain.Labels)),
		Complete:        st.IsGameComplete(),
	}

	for _, l := range domain.Labels {
		n := st.Remaining(l)
		if n == Unlimited {
			n = -1
		}
		v.Remaining[l.String()] = n
	}

	if r := st.current; r != nil {
		v.RoundID = r.ID
		v.LeftImageID = r.Left.ID
		v.RightImageID = r.Right.ID
		v.Answered = r.Answered
		v.Attempts = r.Attempts
		if r.Answered {
			side := r.CorrectSide()
			v.AISide = &side
		}
	}

	if v.Complete {
		v.Tip = m.Tip()
	}
	return v
}
