package admirer

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/whisperlink/whisperlink-backend/internal/api"
	"github.com/whisperlink/whisperlink-backend/internal/app"
	"github.com/whisperlink/whisperlink-backend/internal/cache"
	"github.com/whisperlink/whisperlink-backend/internal/db"
	svcErr "github.com/whisperlink/whisperlink-backend/internal/errors"
	"github.com/whisperlink/whisperlink-backend/internal/identity"
	"github.com/whisperlink/whisperlink-backend/internal/repository"
)

// Service implements the admirer API: profile sync, consent, the
// admiration graph, safety actions, account deletion and the dashboard.
// Business logic sits on top of the repository and cache layers; each
// method corresponds to one route registered in register.go.
type Service struct {
	appCtx *app.AppContext

	resolver      *identity.Resolver
	identityRepo  *repository.IdentityRepository
	graphRepo     *repository.GraphRepository
	safetyRepo    *repository.SafetyRepository
	rateRepo      *repository.RateLimitRepository
	lifecycleRepo *repository.LifecycleRepository
	dashRepo      *repository.DashboardRepository

	policy repository.ConsentPolicy
}

// NewService wires a Service from AppContext. The auth deleter is the
// boundary to the identity provider's account store.
func NewService(appCtx *app.AppContext, authDel repository.AuthDeleter) *Service {
	identityRepo := repository.NewIdentityRepository(appCtx.DB)
	return &Service{
		appCtx:        appCtx,
		resolver:      identity.NewResolver(identityRepo),
		identityRepo:  identityRepo,
		graphRepo:     repository.NewGraphRepository(appCtx.DB),
		safetyRepo:    repository.NewSafetyRepository(appCtx.DB),
		rateRepo:      repository.NewRateLimitRepository(appCtx.DB),
		lifecycleRepo: repository.NewLifecycleRepository(appCtx.DB, authDel),
		dashRepo:      repository.NewDashboardRepository(appCtx.DB),
		policy: repository.ConsentPolicy{
			Gate:           appCtx.Cfg.Consent.Gate,
			PrivacyVersion: appCtx.Cfg.Consent.PrivacyVersion,
			TermsVersion:   appCtx.Cfg.Consent.TermsVersion,
		},
	}
}

// SyncProfile resolves the caller's handle from the session claims and
// records it, establishing the uniqueness indexes.
func (s *Service) SyncProfile(c *gin.Context) {
	s.syncIdentity(c, repository.ActionSyncProfile)
}

// ClaimHandle is the explicit-claim alias of SyncProfile: same
// resolution ladder, same upsert.
func (s *Service) ClaimHandle(c *gin.Context) {
	s.syncIdentity(c, repository.ActionClaimHandle)
}

func (s *Service) syncIdentity(c *gin.Context, action string) {
	sess := api.SessionFrom(c)
	ctx := c.Request.Context()

	if err := s.rateRepo.Enforce(ctx, sess.UID, action); err != nil {
		api.Error(c, err)
		return
	}

	var req struct {
		Username string `json:"username"`
	}
	// body is optional: the session claims alone can carry the handle
	_ = c.ShouldBindJSON(&req)

	handle, err := s.resolver.Resolve(ctx, sess, req.Username)
	if err != nil {
		s.appCtx.Logger.Debug("handle resolution failed", "uid", sess.UID, "err", err)
		api.Error(c, err)
		return
	}

	if err := s.identityRepo.UpsertIdentity(ctx, sess.UID, handle, sess.ProviderUserID, sess.SignInProvider); err != nil {
		s.appCtx.Logger.Error("identity upsert failed", "uid", sess.UID, "err", err)
		api.Error(c, err)
		return
	}

	api.OK(c, gin.H{"ok": true, "username": handle})
}

// AcceptPolicies stamps acceptance of the currently required privacy
// and terms versions.
func (s *Service) AcceptPolicies(c *gin.Context) {
	sess := api.SessionFrom(c)
	ctx := c.Request.Context()

	if err := s.rateRepo.Enforce(ctx, sess.UID, repository.ActionAcceptPolicies); err != nil {
		api.Error(c, err)
		return
	}

	acceptedAt, err := s.identityRepo.AcceptPolicies(ctx, sess.UID, s.policy.PrivacyVersion, s.policy.TermsVersion)
	if err != nil {
		s.appCtx.Logger.Error("accept policies failed", "uid", sess.UID, "err", err)
		api.Error(c, err)
		return
	}

	api.OK(c, gin.H{
		"ok":             true,
		"privacyVersion": s.policy.PrivacyVersion,
		"termsVersion":   s.policy.TermsVersion,
		"acceptedAt":     acceptedAt.Format(time.RFC3339),
	})
}

// AddAdmiration records a secret admiration and reports whether it
// completed a mutual match.
func (s *Service) AddAdmiration(c *gin.Context) {
	sess := api.SessionFrom(c)
	ctx := c.Request.Context()

	if err := s.rateRepo.Enforce(ctx, sess.UID, repository.ActionAddAdmiration); err != nil {
		api.Error(c, err)
		return
	}

	var req struct {
		ToUsername string `json:"toUsername"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		api.Error(c, svcErr.InvalidArgument("invalid request body"))
		return
	}

	res, err := s.graphRepo.AddAdmiration(ctx, sess.UID, req.ToUsername, s.policy)
	if err != nil {
		s.appCtx.Logger.Debug("add admiration rejected", "uid", sess.UID, "err", err)
		api.Error(c, err)
		return
	}

	if err := s.appCtx.RedisCache.InvalidateStats(ctx, sess.UID, res.ToUID); err != nil {
		s.appCtx.Logger.Warn("stats cache invalidation failed", "err", err)
	}

	s.appCtx.Logger.Info("admiration added", "uid", sess.UID, "matched", res.Matched)
	api.OK(c, gin.H{"ok": true, "match": res.Matched, "toUsername": res.ToHandle})
}

// ReportUser files an abuse report against a handle.
func (s *Service) ReportUser(c *gin.Context) {
	sess := api.SessionFrom(c)
	ctx := c.Request.Context()

	if err := s.rateRepo.Enforce(ctx, sess.UID, repository.ActionReportUser); err != nil {
		api.Error(c, err)
		return
	}

	var req struct {
		TargetUsername string `json:"targetUsername"`
		Reason         string `json:"reason"`
		Details        string `json:"details"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		api.Error(c, svcErr.InvalidArgument("invalid request body"))
		return
	}

	reportID, err := s.safetyRepo.Report(ctx, sess.UID, req.TargetUsername, req.Reason, req.Details)
	if err != nil {
		api.Error(c, err)
		return
	}

	s.appCtx.Logger.Info("report filed", "uid", sess.UID, "report_id", reportID)
	api.OK(c, gin.H{"ok": true, "reportId": reportID})
}

// BlockUser blocks a handle in the caller's direction.
func (s *Service) BlockUser(c *gin.Context) {
	sess := api.SessionFrom(c)
	ctx := c.Request.Context()

	if err := s.rateRepo.Enforce(ctx, sess.UID, repository.ActionBlockUser); err != nil {
		api.Error(c, err)
		return
	}

	var req struct {
		TargetUsername string `json:"targetUsername"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		api.Error(c, svcErr.InvalidArgument("invalid request body"))
		return
	}

	res, err := s.safetyRepo.Block(ctx, sess.UID, req.TargetUsername)
	if err != nil {
		api.Error(c, err)
		return
	}

	api.OK(c, gin.H{"ok": true, "blockedUid": res.BlockedUID, "blockedUsername": res.BlockedHandle})
}

// UnblockUser removes the caller's block on a handle, including blocks
// orphaned by the target's account deletion.
func (s *Service) UnblockUser(c *gin.Context) {
	sess := api.SessionFrom(c)
	ctx := c.Request.Context()

	if err := s.rateRepo.Enforce(ctx, sess.UID, repository.ActionUnblockUser); err != nil {
		api.Error(c, err)
		return
	}

	var req struct {
		TargetUsername string `json:"targetUsername"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		api.Error(c, svcErr.InvalidArgument("invalid request body"))
		return
	}

	if err := s.safetyRepo.Unblock(ctx, sess.UID, req.TargetUsername); err != nil {
		api.Error(c, err)
		return
	}

	api.OK(c, gin.H{"ok": true})
}

// DeleteAccount erases the caller's account across every store.
func (s *Service) DeleteAccount(c *gin.Context) {
	sess := api.SessionFrom(c)
	ctx := c.Request.Context()

	if err := s.rateRepo.Enforce(ctx, sess.UID, repository.ActionDeleteAccount); err != nil {
		api.Error(c, err)
		return
	}

	var req struct {
		Confirmation string `json:"confirmation"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		api.Error(c, svcErr.InvalidArgument("invalid request body"))
		return
	}

	impacted, err := s.lifecycleRepo.DeleteAccount(ctx, sess.UID, req.Confirmation)
	if err != nil {
		s.appCtx.Logger.Error("account deletion failed", "uid", sess.UID, "err", err)
		api.Error(c, err)
		return
	}

	if err := s.appCtx.RedisCache.InvalidateStats(ctx, append(impacted, sess.UID)...); err != nil {
		s.appCtx.Logger.Warn("stats cache invalidation failed", "err", err)
	}

	s.appCtx.Logger.Info("account deleted", "uid", sess.UID, "impacted", len(impacted))
	api.OK(c, gin.H{"ok": true})
}

// GetDashboard aggregates the caller's view: profile, counters, recent
// matches and sent admirations with blocked counterparts filtered out,
// and whether consent is still required.
func (s *Service) GetDashboard(c *gin.Context) {
	sess := api.SessionFrom(c)
	ctx := c.Request.Context()

	if err := s.rateRepo.Enforce(ctx, sess.UID, repository.ActionGetDashboard); err != nil {
		api.Error(c, err)
		return
	}

	data, err := s.dashRepo.Fetch(ctx, sess.UID)
	if err != nil {
		s.appCtx.Logger.Error("dashboard fetch failed", "uid", sess.UID, "err", err)
		api.Error(c, err)
		return
	}

	// cache-first counters: serve the snapshot while the user is
	// active, refill on miss
	snap, cacheErr := s.appCtx.RedisCache.GetStats(ctx, sess.UID)
	if cacheErr != nil {
		s.appCtx.Logger.Warn("stats cache read failed", "err", cacheErr)
	}
	if snap == nil {
		snap = &cache.StatsSnapshot{
			IncomingCount: data.Stats.IncomingCount,
			OutgoingCount: data.Stats.OutgoingCount,
			MatchCount:    data.Stats.MatchCount,
		}
		if err := s.appCtx.RedisCache.SetStats(ctx, sess.UID, *snap); err != nil {
			s.appCtx.Logger.Warn("stats cache write failed", "err", err)
		}
	}

	matches := make([]gin.H, 0, len(data.Matches))
	for _, m := range data.Matches {
		if data.Blocked[m.OtherUID] {
			continue
		}
		matches = append(matches, gin.H{
			"otherUid":      m.OtherUID,
			"otherUsername": m.OtherHandle,
			"createdAt":     m.CreatedAt.Format(time.RFC3339),
		})
	}

	sent := make([]gin.H, 0, repository.MaxOutgoing)
	for _, e := range data.Outgoing {
		if data.Blocked[e.ToUID] {
			continue
		}
		if e.ToUID == "" || e.ToHandle == "" {
			continue
		}
		entry := gin.H{
			"toUid":      e.ToUID,
			"toUsername": e.ToHandle,
			"revealed":   e.Revealed,
			"createdAt":  e.CreatedAt.Format(time.RFC3339),
		}
		if e.MatchedAt != nil {
			entry["matchedAt"] = e.MatchedAt.Format(time.RFC3339)
		}
		sent = append(sent, entry)
		if len(sent) >= repository.MaxOutgoing {
			break
		}
	}

	blockedUsers := make([]gin.H, 0, len(data.OwnBlocks))
	for _, b := range data.OwnBlocks {
		blockedUsers = append(blockedUsers, gin.H{
			"blockedUid":      b.BlockedUID,
			"blockedUsername": b.BlockedHandle,
			"createdAt":       b.CreatedAt.Format(time.RFC3339),
		})
	}

	var username interface{}
	var user *db.User
	if data.User != nil {
		user = data.User
		if user.Handle != "" {
			username = user.Handle
		}
	}

	api.OK(c, gin.H{
		"username":        username,
		"incomingCount":   snap.IncomingCount,
		"outgoingCount":   snap.OutgoingCount,
		"matchCount":      snap.MatchCount,
		"maxOutgoing":     repository.MaxOutgoing,
		"matches":         matches,
		"sentAdmirers":    sent,
		"blockedUsers":    blockedUsers,
		"consentRequired": s.policy.Gate && !s.policy.Satisfied(user),
	})
}
