// Copyright 2025 Zintix Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package authority

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/zintix-labs/reelround/errs"
	"github.com/zintix-labs/reelround/protocol"
	"github.com/zintix-labs/reelround/sdk/core"
)

// 非 "200 OK" 的狀態字串
const (
	StatusBadRequest = "400 Bad Request"
	StatusLowBalance = "402 Payment Required"
	StatusNotFound   = "404 Not Found"
	StatusConflict   = "409 Conflict"
)

type stage uint8

const (
	stageStarted stage = iota + 1
	stageBet
)

type openRound struct {
	id      string
	tableID string
	stage   stage
	stake   decimal.Decimal
	out     Outcome
}

// Session 一條連線的回合流程：round_start -> placebet -> round_end。
// 餘額以桌台分開保存，只存在記憶體中。Handle 不可並行呼叫。
type Session struct {
	a       *Authority
	id      int64
	rng     *core.Core
	log     *slog.Logger
	wallets map[string]decimal.Decimal
	round   *openRound
}

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func newSession(a *Authority, id int64, rng *core.Core) *Session {
	return &Session{
		a:       a,
		id:      id,
		rng:     rng,
		log:     a.log.With(slog.Int64("session", id)),
		wallets: make(map[string]decimal.Decimal, 2),
	}
}

// Balance 這個 session 在某桌台的目前餘額。
func (s *Session) Balance(tableID string) (decimal.Decimal, bool) {
	b, ok := s.wallets[tableID]
	return b, ok
}

// Serve 逐筆讀取請求並回應，直到 transport 關閉或 ctx 結束。
func (s *Session) Serve(ctx context.Context, tr protocol.Transport) error {
	s.a.sessions.Add(1)
	defer s.a.sessions.Add(-1)
	s.log.LogAttrs(ctx, slog.LevelInfo, "session.open")
	defer s.log.LogAttrs(context.Background(), slog.LevelInfo, "session.close")
	for {
		env, err := tr.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil || errs.IsCode(err, errs.CodeTransport) {
				return nil
			}
			return err
		}
		if err := tr.Send(ctx, s.Handle(env)); err != nil {
			return errs.Wrap(err, "session send failed")
		}
	}
}

// Handle 處理一筆請求並產生回應。
func (s *Session) Handle(env protocol.Envelope) protocol.Envelope {
	key := env.Key()
	switch key {
	case protocol.KeyRoundStart:
		return s.roundStart(key, env.Data)
	case protocol.KeyPlaceBet:
		return s.placeBet(key, env.Data)
	case protocol.KeyRoundEnd:
		return s.roundEnd(key, env.Data)
	default:
		return s.reject(key, StatusBadRequest, "unknown operation")
	}
}

func (s *Session) roundStart(key protocol.Key, raw json.RawMessage) protocol.Envelope {
	var req protocol.RoundStartRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return s.reject(key, StatusBadRequest, "malformed round_start")
	}
	eng, ok := s.a.Engine(req.TableID)
	if !ok {
		return s.reject(key, StatusNotFound, "unknown table "+req.TableID)
	}
	if s.round != nil {
		s.log.LogAttrs(context.Background(), slog.LevelWarn, "session.round_abandoned",
			slog.String("round", s.round.id), slog.Int("stage", int(s.round.stage)))
	}
	bal := s.wallet(eng)
	s.round = &openRound{id: uuid.NewString(), tableID: eng.TableID(), stage: stageStarted}
	s.log.LogAttrs(context.Background(), slog.LevelDebug, "session.round_start", slog.String("round", s.round.id))
	return s.reply(key, protocol.RoundStartResponse{Status: protocol.StatusOK, RoundID: s.round.id, Balance: bal})
}

func (s *Session) placeBet(key protocol.Key, raw json.RawMessage) protocol.Envelope {
	var req protocol.PlaceBetRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return s.reject(key, StatusBadRequest, "malformed placebet")
	}
	r := s.round
	if r == nil || r.id != req.RoundID || r.tableID != req.TableID || r.stage != stageStarted {
		return s.reject(key, StatusConflict, "no open round "+req.RoundID)
	}
	eng, _ := s.a.Engine(r.tableID)
	if !req.Stake.IsPositive() || !eng.ValidStake(req.Stake) {
		return s.reject(key, StatusBadRequest, "invalid stake "+req.Stake.String())
	}
	bal := s.wallet(eng)
	if req.Stake.GreaterThan(bal) {
		return s.reject(key, StatusLowBalance, "stake exceeds balance")
	}
	bal = bal.Sub(req.Stake)
	s.wallets[r.tableID] = bal
	r.stake = req.Stake
	r.out = eng.Play(s.rng, req.Stake)
	r.stage = stageBet
	s.log.LogAttrs(context.Background(), slog.LevelDebug, "session.placebet",
		slog.String("round", r.id), slog.String("stake", req.Stake.String()), slog.String("combo", r.out.WinCombo))
	return s.reply(key, protocol.PlaceBetResponse{
		Status:   protocol.StatusOK,
		Balance:  bal,
		WinCombo: r.out.WinCombo,
		Matrix:   r.out.Matrix,
	})
}

func (s *Session) roundEnd(key protocol.Key, raw json.RawMessage) protocol.Envelope {
	var req protocol.RoundEndRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return s.reject(key, StatusBadRequest, "malformed round_end")
	}
	r := s.round
	if r == nil || r.id != req.RoundID || r.tableID != req.TableID || r.stage != stageBet {
		return s.reject(key, StatusConflict, "no settled bet for round "+req.RoundID)
	}
	if req.ResultString != r.out.WinCombo {
		s.log.LogAttrs(context.Background(), slog.LevelWarn, "session.result_mismatch",
			slog.String("round", r.id), slog.String("got", req.ResultString))
	}
	bal := s.wallets[r.tableID].Add(r.out.Reward)
	s.wallets[r.tableID] = bal
	s.round = nil
	s.a.rounds.Add(1)
	return s.reply(key, protocol.RoundEndResponse{
		Status:   protocol.StatusOK,
		Balance:  bal,
		Reward:   r.out.Reward,
		Paylines: r.out.Paylines,
	})
}

func (s *Session) wallet(eng *Engine) decimal.Decimal {
	bal, ok := s.wallets[eng.TableID()]
	if !ok {
		bal = eng.InitialBalance()
		s.wallets[eng.TableID()] = bal
	}
	return bal
}

func (s *Session) reply(key protocol.Key, payload any) protocol.Envelope {
	env, err := protocol.NewEnvelope(key, payload)
	if err != nil {
		s.log.LogAttrs(context.Background(), slog.LevelError, "session.encode", slog.Any("err", err))
		op, _ := key.Split()
		return protocol.Envelope{Operation: op}
	}
	return env
}

func (s *Session) reject(key protocol.Key, status, msg string) protocol.Envelope {
	s.log.LogAttrs(context.Background(), slog.LevelWarn, "session.reject",
		slog.String("key", string(key)), slog.String("status", status), slog.String("msg", msg))
	return s.reply(key, errorResponse{Status: status, Message: msg})
}
