package admirer

import (
	"github.com/gin-gonic/gin"

	"github.com/whisperlink/whisperlink-backend/internal/api"
	"github.com/whisperlink/whisperlink-backend/internal/app"
	"github.com/whisperlink/whisperlink-backend/internal/repository"
)

// Registrar ties the admirer service into the router.
type Registrar struct {
	appCtx  *app.AppContext
	authDel repository.AuthDeleter
}

// NewRegistrar creates a new Registrar for the admirer service.
func NewRegistrar(appCtx *app.AppContext, authDel repository.AuthDeleter) *Registrar {
	return &Registrar{appCtx: appCtx, authDel: authDel}
}

var _ api.Registrar = (*Registrar)(nil)

// Register attaches the admirer routes to the authenticated group.
func (r *Registrar) Register(rg *gin.RouterGroup) {
	s := NewService(r.appCtx, r.authDel)

	rg.POST("/profile/sync", s.SyncProfile)
	rg.POST("/profile/claim", s.ClaimHandle)
	rg.POST("/consent/accept", s.AcceptPolicies)
	rg.POST("/admirations", s.AddAdmiration)
	rg.POST("/reports", s.ReportUser)
	rg.POST("/blocks", s.BlockUser)
	rg.POST("/blocks/remove", s.UnblockUser)
	rg.POST("/account/delete", s.DeleteAccount)
	rg.GET("/dashboard", s.GetDashboard)
}
