package http

import (
	"net/http"

	"spendmind/internal/log"
)

type signInRequest struct {
	Owner string `json:"owner"`
}

type sessionResponse struct {
	Owner    string `json:"owner,omitempty"`
	Epoch    uint64 `json:"epoch"`
	SignedIn bool   `json:"signed_in"`
	Loading  bool   `json:"loading"`
}

func (s *Server) sessionStatus() sessionResponse {
	owner, epoch, ok := s.gate.Current()
	resp := sessionResponse{Owner: owner, Epoch: epoch, SignedIn: ok}
	if st, open := s.stores.Current(); open {
		resp.Loading = st.Loading()
	}
	return resp
}

func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Data(s.sessionStatus()).Write(w)
}

// handleSignIn makes the posted owner current. Signing in a different owner
// ends the previous session; the new store starts loading in the background.
func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	const op = "sign in"
	var req signInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, op, err)
		return
	}
	if err := s.gate.SignIn(sanitizeInput(req.Owner)); err != nil {
		s.fail(w, r, op, err)
		return
	}
	resp := s.sessionStatus()
	log.FromContext(r.Context()).InfoContext(r.Context(), "Signed in",
		log.FieldOwner, resp.Owner, log.FieldEpoch, resp.Epoch)
	NewJSONResponse().Data(resp).Write(w)
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	s.gate.SignOut()
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
