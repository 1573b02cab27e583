package echoapi

import (
	"net/http"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/heroesdelapatria/portal/core"
	"github.com/heroesdelapatria/portal/core/recommend"
)

// error codes
const (
	codeInvalidUserID          = "INVALID_USER_ID"
	codeInvalidOptions         = "INVALID_OPTIONS"
	codeInvalidProfileData     = "INVALID_PROFILE_DATA"
	codeInvalidInteractionData = "INVALID_INTERACTION_DATA"
	codeMLProcessing           = "ML_PROCESSING_ERROR"
	codeProfileUpdate          = "PROFILE_UPDATE_ERROR"
	codeProfileFetch           = "PROFILE_FETCH_ERROR"
	codeInteraction            = "INTERACTION_ERROR"
	codeTraining               = "TRAINING_ERROR"
	codeStats                  = "STATS_ERROR"
	codeHealthCheck            = "HEALTH_CHECK_ERROR"
	codeCategoryRecommend      = "CATEGORY_RECOMMENDATIONS_ERROR"
	codeProfileNotFound        = "USER_PROFILE_NOT_FOUND"
)

type recommendApi struct {
	svc        recommend.ServiceInterface
	validate   *validator.Validate
	translator ut.Translator
}

func registerRecommendAPI(
	g *echo.Group,
	svc recommend.ServiceInterface,
	validate *validator.Validate,
	translator ut.Translator,
) {
	api := recommendApi{
		svc:        svc,
		validate:   validate,
		translator: translator,
	}

	g.GET("/health", api.health)
	g.GET("/stats", api.stats)
	g.GET("/catalog", api.catalog)
	g.POST("/train", api.train)
	g.POST("/interaction", api.recordInteraction)

	g.POST("/recommendations", api.recommend)
	g.GET("/recommendations/:userId/:category", api.recommendByCategory)

	g.GET("/profile/:userId", api.retrieveProfile)
	g.PUT("/profile/:userId", api.updateProfile)
}

// Handlers

func (api *recommendApi) health(ctx echo.Context) error {
	h, err := api.svc.Health()
	if err != nil {
		return core.NewInternalError(codeHealthCheck, "health check failed", err)
	}
	return ctx.JSON(http.StatusOK, h)
}

func (api *recommendApi) stats(ctx echo.Context) error {
	st, err := api.svc.Stats()
	if err != nil {
		return core.NewInternalError(codeStats, "failed to get stats", err)
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api *recommendApi) catalog(ctx echo.Context) error {
	items := recommend.Catalog
	if cat := core.CleanString(ctx.QueryParam("category"), true /* lower */); cat != "" {
		items = recommend.CatalogByCategory(cat)
	}
	return ctx.JSON(http.StatusOK, echo.Map{
		"items":      items,
		"total":      len(items),
		"categories": recommend.Categories(),
	})
}

func (api *recommendApi) train(ctx echo.Context) error {
	var data struct {
		ForceRetrain bool `json:"forceRetrain"`
	}
	if err := ctx.Bind(&data); err != nil {
		return bindError(codeInvalidRequest, err)
	}

	res, err := api.svc.Train(data.ForceRetrain)
	if err != nil {
		if _, ok := errors.Cause(err).(*core.ConflictError); ok {
			return err
		}
		return core.NewInternalError(codeTraining, "training failed", err)
	}
	return ctx.JSON(http.StatusOK, echo.Map{"success": true, "trainingResult": res})
}

func (api *recommendApi) recordInteraction(ctx echo.Context) error {
	var data recommend.NewInteraction
	if err := ctx.Bind(&data); err != nil {
		return bindError(codeInvalidInteractionData, err)
	}
	if err := data.Validate(api.validate); err != nil {
		return validationError(codeInvalidInteractionData, "userId, itemId and interactionType are required", err, api.translator)
	}

	in, err := api.svc.RecordInteraction(data)
	if err != nil {
		return core.NewInternalError(codeInteraction, "failed to record interaction", err)
	}
	return ctx.JSON(http.StatusOK, echo.Map{
		"success":     true,
		"interaction": in,
		"message":     "Interacción registrada",
	})
}

func (api *recommendApi) recommend(ctx echo.Context) error {
	var data recommend.RecommendRequest
	if err := ctx.Bind(&data); err != nil {
		return bindError(codeInvalidRequest, err)
	}
	if err := data.Validate(api.validate); err != nil {
		code := codeInvalidOptions
		var vErrs validator.ValidationErrors
		if errors.As(err, &vErrs) {
			for _, vErr := range vErrs {
				if vErr.Field() == "userId" {
					code = codeInvalidUserID
					break
				}
			}
			if code == codeInvalidOptions && data.UserProfile != nil && hasNamespace(vErrs, "userProfile") {
				code = codeInvalidProfileData
			}
		}
		return validationError(code, "invalid recommendation request", err, api.translator)
	}

	res, err := api.svc.Recommend(data)
	if err != nil {
		if _, ok := errors.Cause(err).(*core.NotFoundError); ok {
			return err
		}
		return core.NewInternalError(codeMLProcessing, "failed to generate recommendations", err)
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *recommendApi) recommendByCategory(ctx echo.Context) error {
	var limit Limit
	limit.Bind(ctx)

	res, err := api.svc.CategoryRecommendations(ctx.Param("userId"), ctx.Param("category"), limit.Value)
	if err != nil {
		if _, ok := errors.Cause(err).(*core.NotFoundError); ok {
			return err
		}
		return core.NewInternalError(codeCategoryRecommend, "failed to generate category recommendations", err)
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *recommendApi) retrieveProfile(ctx echo.Context) error {
	p, err := api.svc.GetProfile(ctx.Param("userId"))
	if err != nil {
		if errors.Cause(err) == recommend.ErrProfileNotFound {
			return core.NewNotFoundError(codeProfileNotFound, err)
		}
		return core.NewInternalError(codeProfileFetch, "failed to get profile", err)
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *recommendApi) updateProfile(ctx echo.Context) error {
	var data recommend.ProfileUpdate
	if err := ctx.Bind(&data); err != nil {
		return bindError(codeInvalidProfileData, err)
	}
	if err := data.Validate(api.validate); err != nil {
		return validationError(codeInvalidProfileData, "invalid profile data", err, api.translator)
	}

	userID := ctx.Param("userId")
	p, err := api.svc.UpdateProfile(userID, data)
	if err != nil {
		return core.NewInternalError(codeProfileUpdate, "failed to update profile", err)
	}
	return ctx.JSON(http.StatusOK, echo.Map{
		"success":   true,
		"userId":    p.UserID,
		"profile":   p,
		"timestamp": p.UpdatedAt,
	})
}

func hasNamespace(vErrs validator.ValidationErrors, prefix string) bool {
	for _, vErr := range vErrs {
		// eg. RecommendRequest.userProfile.grades[x]
		parts := strings.SplitN(vErr.Namespace(), ".", 2)
		if len(parts) == 2 && strings.HasPrefix(parts[1], prefix) {
			return true
		}
	}
	return false
}
