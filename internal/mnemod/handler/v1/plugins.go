package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mnemora/mnemora/internal/mnemod/service/errno"
	"github.com/mnemora/mnemora/internal/mnemod/service/runtime"
)

// PluginsHandler serves plugin introspection and reload.
type PluginsHandler struct {
	runtime *runtime.Runtime
}

// NewPluginsHandler creates the handler.
func NewPluginsHandler(rt *runtime.Runtime) *PluginsHandler {
	return &PluginsHandler{runtime: rt}
}

// List returns every registered plugin with its state.
func (h *PluginsHandler) List(c *gin.Context) {
	infos := h.runtime.Registry().Infos()
	c.JSON(http.StatusOK, gin.H{"plugins": infos, "count": len(infos)})
}

// Reload tears one plugin down and initializes it again.
func (h *PluginsHandler) Reload(c *gin.Context) {
	name := c.Param("name")

	if err := h.runtime.ReloadPlugin(c.Request.Context(), name); err != nil {
		status := http.StatusInternalServerError
		if errno.IsKind(err, errno.KindDependencyNotRegistered) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"reloaded": name})
}
