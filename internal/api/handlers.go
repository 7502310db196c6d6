package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"acdm-platform/internal/domain"
)

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	snap, err := s.svc.Snapshot(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	who, err := caller(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req RegisterRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	referrer, err := domain.ParseAddress(string(req.Referrer))
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := s.svc.Register(r.Context(), who, referrer)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleReferrer(w http.ResponseWriter, r *http.Request) {
	addr, err := domain.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, err)
		return
	}
	ref, err := s.svc.Referrer(r.Context(), addr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ReferrerResponse{Participant: addr, Referrer: ref})
}

func (s *Server) handleReferrals(w http.ResponseWriter, r *http.Request) {
	links, err := s.svc.Referrals(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, links)
}

func (s *Server) handleStartSale(w http.ResponseWriter, r *http.Request) {
	who, err := caller(r)
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := s.svc.StartSaleRound(r.Context(), who)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleStartTrade(w http.ResponseWriter, r *http.Request) {
	who, err := caller(r)
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := s.svc.StartTradeRound(r.Context(), who)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleRounds(w http.ResponseWriter, r *http.Request) {
	rounds, err := s.svc.Rounds(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rounds)
}

func (s *Server) handleRound(w http.ResponseWriter, r *http.Request) {
	seq, err := intParam(r, "seq")
	if err != nil {
		writeError(w, err)
		return
	}
	round, err := s.svc.Round(r.Context(), seq)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, round)
}

func (s *Server) handleStatusRound(w http.ResponseWriter, r *http.Request) {
	number, err := intParam(r, "number")
	if err != nil {
		writeError(w, err)
		return
	}
	kind, err := s.svc.StatusRound(r.Context(), number)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusRoundResponse{Number: number, Kind: kind})
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	who, err := caller(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req BuyRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	out, err := s.svc.BuyACDM(r.Context(), who, req.Amount, req.Payment)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.svc.Orders(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if owner := r.URL.Query().Get("owner"); owner != "" {
		filtered := orders[:0]
		for _, o := range orders {
			if string(o.Owner) == owner {
				filtered = append(filtered, o)
			}
		}
		orders = filtered
	}
	if r.URL.Query().Get("open") == "true" {
		filtered := orders[:0]
		for _, o := range orders {
			if o.IsOpen() {
				filtered = append(filtered, o)
			}
		}
		orders = filtered
	}
	writeJSON(w, http.StatusOK, orders)
}

func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	o, err := s.svc.Order(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) handleAddOrder(w http.ResponseWriter, r *http.Request) {
	who, err := caller(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req AddOrderRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	out, err := s.svc.AddOrder(r.Context(), who, req.Amount, req.PricePerToken)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleRemoveOrder(w http.ResponseWriter, r *http.Request) {
	who, err := caller(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := idParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := s.svc.RemoveOrder(r.Context(), who, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	who, err := caller(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := idParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req RedeemRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	out, err := s.svc.RedeemOrder(r.Context(), who, id, req.Amount, req.Payment)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	who, err := caller(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req ApproveRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.svc.Approve(r.Context(), who, req.Amount); err != nil {
		writeError(w, err)
		return
	}
	bal, err := s.svc.Balance(r.Context(), who)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bal)
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	addr, err := domain.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, err)
		return
	}
	bal, err := s.svc.Balance(r.Context(), addr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bal)
}

func intParam(r *http.Request, name string) (int, error) {
	v, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || v < 0 {
		return 0, badRequest("invalid %s %q", name, chi.URLParam(r, name))
	}
	return v, nil
}

func idParam(r *http.Request) (uint64, error) {
	v, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, badRequest("invalid order id %q", chi.URLParam(r, "id"))
	}
	return v, nil
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	report, err := s.verifier.VerifyAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if !report.Match() {
		s.log.WithField("divergences", len(report.Divergences)).Warn("stores diverge from live state")
	}
	writeJSON(w, http.StatusOK, report)
}
