package lib

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/TecharoHQ/wall"
	"github.com/TecharoHQ/wall/internal"
	"github.com/TecharoHQ/wall/lib/challenge"
	"github.com/TecharoHQ/wall/lib/challenge/proofofwork"
	"github.com/TecharoHQ/wall/lib/localization"
	"github.com/TecharoHQ/wall/lib/message"
	"github.com/TecharoHQ/wall/lib/policy"
	"github.com/TecharoHQ/wall/lib/ratelimit"
)

// maxBodyBytes bounds POST /wall bodies. A 280 code point message fits with
// plenty of room for JSON escaping.
const maxBodyBytes = 16 << 10

type challengeResponse struct {
	Nonce            string `json:"nonce"`
	Difficulty       int    `json:"difficulty"`
	ExpiresInSeconds int    `json:"expires_in_seconds"`
	Hint             string `json:"hint"`
}

type rateLimits struct {
	MaxPerHour      int `json:"max_per_hour"`
	CooldownSeconds int `json:"cooldown_seconds"`
}

type listResponse struct {
	Success    bool              `json:"success"`
	Count      int               `json:"count"`
	Messages   []message.Message `json:"messages"`
	Hint       string            `json:"hint"`
	RateLimits rateLimits        `json:"rate_limits"`
}

// PostRequest is the body of POST /wall.
type PostRequest struct {
	Message  string `json:"message"`
	Nonce    string `json:"nonce"`
	Solution string `json:"solution"`
}

// PostedMessage is a stored message plus the URL it can be fetched from.
type PostedMessage struct {
	ID       string           `json:"id"`
	Text     string           `json:"text"`
	Position message.Position `json:"position"`
	Color    string           `json:"color"`
	URL      string           `json:"url"`
}

type postRateLimit struct {
	RemainingPostsThisHour int `json:"remaining_posts_this_hour"`
	CooldownSeconds        int `json:"cooldown_seconds"`
}

// PostResponse is the body of a successful POST /wall.
type PostResponse struct {
	Success   bool          `json:"success"`
	Message   string        `json:"message"`
	Data      PostedMessage `json:"data"`
	RateLimit postRateLimit `json:"rate_limit"`
}

type errorResponse struct {
	Success           bool   `json:"success"`
	Error             string `json:"error"`
	RetryAfterSeconds int    `json:"retry_after_seconds,omitempty"`
}

func (s *Server) GetChallenge(w http.ResponseWriter, r *http.Request) {
	lg := internal.GetRequestLogger(r)

	chall, err := s.opts.Issuer.Issue(r.Context())
	if err != nil {
		s.respondWithError(w, r, NewError(ErrStorage, localization.GetLocalizer(r).T("internal_error"), err))
		return
	}

	challengesServed.Inc()
	lg.Debug("issued challenge", "nonce", chall.Nonce, "difficulty", chall.Difficulty)

	s.respondWithJSON(w, r, http.StatusOK, challengeResponse{
		Nonce:            chall.Nonce,
		Difficulty:       chall.Difficulty,
		ExpiresInSeconds: int(chall.ExpiresIn().Seconds()),
		Hint:             chall.Hint(),
	})
}

func (s *Server) ListWall(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := wall.DefaultListLimit
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	order, err := message.ParseOrder(q.Get("order"))
	if err != nil {
		s.respondWithError(w, r, NewError(ErrValidation, "order must be asc or desc", err))
		return
	}

	format := q.Get("format")
	switch format {
	case "", "json", "text":
	default:
		s.respondWithError(w, r, NewError(ErrValidation, "format must be json or text", fmt.Errorf("unknown format %q", format)))
		return
	}

	msgs, err := s.opts.Messages.List(r.Context(), limit, order)
	if err != nil {
		s.respondWithError(w, r, NewError(ErrStorage, localization.GetLocalizer(r).T("internal_error"), err))
		return
	}

	if format == "text" {
		wallReads.WithLabelValues("text").Inc()
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, message.RenderText(msgs))
		return
	}

	wallReads.WithLabelValues("json").Inc()

	if msgs == nil {
		msgs = []message.Message{}
	}

	s.respondWithJSON(w, r, http.StatusOK, listResponse{
		Success:  true,
		Count:    len(msgs),
		Messages: msgs,
		Hint:     localization.GetLocalizer(r).T("wall_hint"),
		RateLimits: rateLimits{
			MaxPerHour:      s.opts.Limits.MaxPerHour,
			CooldownSeconds: int(s.opts.Limits.Cooldown.Seconds()),
		},
	})
}

func (s *Server) GetMessage(w http.ResponseWriter, r *http.Request) {
	msg, err := s.opts.Messages.Get(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, message.ErrNotFound):
		s.respondWithError(w, r, NewError(ErrNotFound, localization.GetLocalizer(r).T("message_not_found"), err))
		return
	case err != nil:
		s.respondWithError(w, r, NewError(ErrStorage, localization.GetLocalizer(r).T("internal_error"), err))
		return
	}

	s.respondWithJSON(w, r, http.StatusOK, struct {
		Success bool            `json:"success"`
		Data    message.Message `json:"data"`
	}{
		Success: true,
		Data:    *msg,
	})
}

func (s *Server) Healthz(w http.ResponseWriter, r *http.Request) {
	s.respondWithJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// PostWall runs a submission through the gates in order: rate limit,
// validation, proof of work, persistence, broadcast. The first failing gate
// answers the request.
func (s *Server) PostWall(w http.ResponseWriter, r *http.Request) {
	lg := internal.GetRequestLogger(r)
	loc := localization.GetLocalizer(r)
	clientKey := s.opts.ClientKeys.Key(r)
	lg = lg.With("client_key", clientKey)

	decision, werr := s.checkRateLimit(r, loc, clientKey)
	if werr != nil {
		s.reject(w, r, werr)
		return
	}

	req, werr := s.validate(r, loc, clientKey)
	if werr != nil {
		s.reject(w, r, werr)
		return
	}

	if werr := s.checkProof(r, loc, req); werr != nil {
		s.reject(w, r, werr)
		return
	}

	msg, err := s.appendAndPublish(r, req.Message)
	if err != nil {
		s.reject(w, r, NewError(ErrStorage, loc.T("internal_error"), err))
		return
	}

	postsAccepted.Inc()
	lg.Info("message posted", "id", msg.ID, "remaining", decision.Remaining)

	s.respondWithJSON(w, r, http.StatusOK, PostResponse{
		Success: true,
		Message: loc.T("message_posted"),
		Data: PostedMessage{
			ID:       msg.ID,
			Text:     msg.Text,
			Position: msg.Position,
			Color:    msg.Color,
			URL:      s.opts.BasePrefix + "/wall/" + msg.ID,
		},
		RateLimit: postRateLimit{
			RemainingPostsThisHour: decision.Remaining,
			CooldownSeconds:        int(s.opts.Limits.Cooldown.Seconds()),
		},
	})
}

func (s *Server) appendAndPublish(r *http.Request, text string) (*message.Message, error) {
	s.appendLock.Lock()
	defer s.appendLock.Unlock()

	msg, err := s.opts.Messages.Append(r.Context(), text)
	if err != nil {
		return nil, err
	}

	s.opts.Hub.Publish(*msg)

	return msg, nil
}

func (s *Server) checkRateLimit(r *http.Request, loc *localization.SimpleLocalizer, clientKey string) (ratelimit.Decision, *Error) {
	decision, err := s.opts.Limiter.CheckAndConsume(r.Context(), clientKey, s.opts.Now())
	if err != nil {
		return decision, NewError(ErrConfiguration, loc.T("internal_error"), err)
	}

	if decision.Allowed {
		return decision, nil
	}

	var public string
	switch decision.Reason {
	case ratelimit.ReasonHourly:
		public = loc.TD("rate_limited_hourly", map[string]any{"Minutes": decision.RetryAfterSeconds() / 60})
	default:
		public = loc.TD("rate_limited_cooldown", map[string]any{"Seconds": decision.RetryAfterSeconds()})
	}

	werr := NewError(ErrRateLimited, public, fmt.Errorf("%s: retry after %s", decision.Reason, decision.RetryAfter))
	werr.RetryAfter = decision.RetryAfter

	return decision, werr
}

func (s *Server) validate(r *http.Request, loc *localization.SimpleLocalizer, clientKey string) (*PostRequest, *Error) {
	var req PostRequest

	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		return nil, NewError(ErrValidation, loc.T("bad_body"), err)
	}

	switch {
	case req.Message == "":
		return nil, NewError(ErrValidation, loc.T("message_required"), errors.New("missing field: message"))
	case req.Nonce == "":
		return nil, NewError(ErrValidation, loc.T("nonce_required"), errors.New("missing field: nonce"))
	case req.Solution == "":
		return nil, NewError(ErrValidation, loc.T("solution_required"), errors.New("missing field: solution"))
	}

	text, err := message.Normalize(req.Message)
	switch {
	case errors.Is(err, message.ErrEmptyMessage):
		return nil, NewError(ErrValidation, loc.T("message_empty"), err)
	case errors.Is(err, message.ErrMessageTooLong):
		return nil, NewError(ErrValidation, loc.TD("message_too_long", map[string]any{"Limit": wall.MaxMessageLength}), err)
	case err != nil:
		return nil, NewError(ErrValidation, "message is invalid", err)
	}
	req.Message = text

	if s.opts.Policy != nil {
		match, err := s.opts.Policy.Evaluate(r.Context(), &policy.Input{
			Text:      text,
			ClientKey: clientKey,
			UserAgent: r.UserAgent(),
			Header:    r.Header,
		})
		if err != nil {
			return nil, NewError(ErrConfiguration, loc.T("internal_error"), err)
		}
		if match != nil {
			return nil, NewError(ErrValidation, match.Message, fmt.Errorf("policy rule %s matched", match.Name))
		}
	}

	return &req, nil
}

func (s *Server) checkProof(r *http.Request, loc *localization.SimpleLocalizer, req *PostRequest) *Error {
	if err := proofofwork.Check(req.Nonce, req.Solution, s.opts.Issuer.Difficulty()); err != nil {
		var cerr *challenge.Error
		if errors.As(err, &cerr) {
			public := cerr.PublicReason
			if cerr.MessageID != "" {
				public = loc.TD(cerr.MessageID, cerr.Data)
			}
			return NewError(ErrProofOfWork, public, err)
		}
		return NewError(ErrProofOfWork, "invalid proof of work", err)
	}

	if !s.opts.RequireIssued {
		return nil
	}

	err := s.opts.Issuer.Consume(r.Context(), req.Nonce)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, challenge.ErrUnknownNonce):
		return NewError(ErrProofOfWork, loc.T("nonce_unknown"), err)
	case errors.Is(err, challenge.ErrExpired):
		return NewError(ErrProofOfWork, loc.T("nonce_expired"), err)
	default:
		return NewError(ErrStorage, loc.T("internal_error"), err)
	}
}

func (s *Server) reject(w http.ResponseWriter, r *http.Request, werr *Error) {
	postsRejected.WithLabelValues(werr.KindName()).Inc()
	s.respondWithError(w, r, werr)
}

func (s *Server) respondWithJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		internal.GetRequestLogger(r).Error("failed to encode response", "err", err)
	}
}

// respondWithError answers with {success:false, error}. Only the public
// reason reaches the client.
func (s *Server) respondWithError(w http.ResponseWriter, r *http.Request, werr *Error) {
	lg := internal.GetRequestLogger(r)

	level := slog.LevelInfo
	if werr.StatusCode >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	lg.Log(r.Context(), level, "request rejected", "kind", werr.KindName(), "status", werr.StatusCode, "err", werr.PrivateReason)

	body := errorResponse{
		Error: werr.PublicReason,
	}

	if werr.StatusCode == http.StatusTooManyRequests {
		body.RetryAfterSeconds = werr.RetryAfterSeconds()
		w.Header().Set("Retry-After", strconv.Itoa(body.RetryAfterSeconds))
	}

	s.respondWithJSON(w, r, werr.StatusCode, body)
}
