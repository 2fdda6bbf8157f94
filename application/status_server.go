package application

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"lottoclaim/domain/entities"
	"lottoclaim/infrastructure/observability"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func init() {
	gin.SetMode(gin.ReleaseMode)
}

// StatusProvider exposes the worker state served over HTTP
type StatusProvider interface {
	Status() WorkerStatus
}

// StatusServer serves health, status and Prometheus metrics
type StatusServer struct {
	srv *http.Server
}

type claimableRound struct {
	RoundID uint64 `json:"round_id"`
	Amount  string `json:"amount"`
	Partial bool   `json:"status_unverified,omitempty"`
}

type statusResponse struct {
	Player         string           `json:"player"`
	ResolvedAt     *time.Time       `json:"resolved_at,omitempty"`
	LastRunAt      time.Time        `json:"last_run_at"`
	LastError      string           `json:"last_error,omitempty"`
	Groups         int              `json:"groups"`
	Tickets        int              `json:"tickets"`
	Claimable      []claimableRound `json:"claimable"`
	TotalClaimable string           `json:"total_claimable"`
	Warnings       []string         `json:"warnings,omitempty"`
	Stats          *statsResponse   `json:"stats,omitempty"`
	LastClaim      string           `json:"last_claim,omitempty"`
	AutoClaim      bool             `json:"auto_claim"`
	CanClaim       bool             `json:"can_claim"`
}

type statsResponse struct {
	Purchases           int    `json:"purchases"`
	TicketsBought       uint64 `json:"tickets_bought"`
	TotalSpent          string `json:"total_spent"`
	TotalClaimed        string `json:"total_claimed"`
	PendingClaims       string `json:"pending_claims"`
	ProfitLoss          string `json:"profit_loss"`
	PotentialProfitLoss string `json:"potential_profit_loss"`
	ROIBasisPoints      int64  `json:"roi_bps"`
	RoundsWon           int    `json:"rounds_won"`
}

// NewStatusServer builds the router. pprof routes are mounted when withPprof is set.
func NewStatusServer(addr string, provider StatusProvider, metrics *observability.MetricsProvider, withPprof bool) *StatusServer {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.GET("/readyz", func(c *gin.Context) {
		st := provider.Status()
		if st.Latest == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no successful reconciliation yet"})
			return
		}
		c.String(http.StatusOK, "ok")
	})
	r.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, buildStatus(provider.Status()))
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	if withPprof {
		pprof.Register(r)
	}

	return &StatusServer{srv: &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

// Handler exposes the router for tests
func (s *StatusServer) Handler() http.Handler {
	return s.srv.Handler
}

// Start serves in the background and returns a function that shuts the server down
func (s *StatusServer) Start() func() {
	go func() {
		log.WithField("addr", s.srv.Addr).Info("Status server listening")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("Status server failed")
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(ctx); err != nil {
			log.WithError(err).Warn("Status server shutdown failed")
		}
	}
}

func buildStatus(st WorkerStatus) statusResponse {
	resp := statusResponse{
		Player:         st.Player.Hex(),
		LastRunAt:      st.LastRunAt,
		Claimable:      []claimableRound{},
		TotalClaimable: "0",
		AutoClaim:      st.AutoClaim,
		CanClaim:       st.CanClaim,
	}
	if st.LastErr != nil {
		resp.LastError = st.LastErr.Error()
	}
	if st.LastReport != nil {
		resp.LastClaim = st.LastReport.Summary()
	}

	snap := st.Latest
	if snap == nil {
		return resp
	}
	resolved := snap.ResolvedAt
	resp.ResolvedAt = &resolved
	resp.Groups = len(snap.Groups)
	resp.Tickets = len(snap.Tickets)
	resp.TotalClaimable = entities.FormatTokenAmount(snap.TotalClaimable)
	resp.Warnings = snap.Warnings
	for _, rec := range snap.Claimable {
		resp.Claimable = append(resp.Claimable, claimableRound{
			RoundID: rec.RoundID,
			Amount:  entities.FormatTokenAmount(rec.AmountOwed),
			Partial: rec.QueryFailed,
		})
	}
	if s := snap.Stats; s != nil {
		resp.Stats = &statsResponse{
			Purchases:           s.Purchases,
			TicketsBought:       s.TicketsBought,
			TotalSpent:          entities.FormatTokenAmount(s.TotalSpent),
			TotalClaimed:        entities.FormatTokenAmount(s.TotalClaimed),
			PendingClaims:       entities.FormatTokenAmount(s.TotalPending),
			ProfitLoss:          entities.FormatTokenAmount(s.ProfitLoss()),
			PotentialProfitLoss: entities.FormatTokenAmount(s.PotentialProfitLoss()),
			ROIBasisPoints:      s.ROIBasisPoints(),
			RoundsWon:           s.RoundsWon,
		}
	}
	return resp
}

// String renders the status as the CLI summary
func (st WorkerStatus) String() string {
	resp := buildStatus(st)
	out := fmt.Sprintf("player %s: %d purchase groups, %d tickets, %d claimable rounds (%s)",
		resp.Player, resp.Groups, resp.Tickets, len(resp.Claimable), resp.TotalClaimable)
	if resp.Stats != nil {
		out += fmt.Sprintf("; spent %s, claimed %s, P/L %s", resp.Stats.TotalSpent, resp.Stats.TotalClaimed, resp.Stats.ProfitLoss)
	}
	return out
}
