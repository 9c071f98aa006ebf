package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/coffee3333/erudite/core"
	"github.com/coffee3333/erudite/core/course"
)

var errObjNotFoundInCtx = errors.New("object not found in echo.Context")

type courseApi struct {
	svc        course.Service
	validate   *validator.Validate
	translator ut.Translator
}

func registerCourseAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc course.Service,
	validate *validator.Validate,
	translator ut.Translator,
) {
	api := courseApi{
		svc:        svc,
		validate:   validate,
		translator: translator,
	}

	courseOwner := ownerOrAdminMiddleware(func(slug string) (core.Owned, error) { return api.svc.GetCourseBySlug(slug) })
	topicOwner := ownerOrAdminMiddleware(func(slug string) (core.Owned, error) { return api.svc.GetTopicBySlug(slug) })
	challengeOwner := ownerOrAdminMiddleware(func(slug string) (core.Owned, error) { return api.svc.GetChallengeBySlug(slug) })

	// courses
	cg := g.Group("/courses")
	cg.GET("", api.queryCourses)
	cg.POST("", api.createCourse, jwt, teacherMiddleware(), verifiedEmailMiddleware())
	cg.GET("/:slug", api.retrieveCourse)
	cg.PUT("/:slug", api.updateCourse, jwt, courseOwner)
	cg.PATCH("/:slug", api.updateCourse, jwt, courseOwner)
	cg.DELETE("/:slug", api.destroyCourse, jwt, courseOwner)
	cg.GET("/:slug/topics", api.queryCourseTopics)

	// topics
	tg := g.Group("/topics")
	tg.POST("", api.createTopic, jwt, teacherMiddleware(), verifiedEmailMiddleware())
	tg.PATCH("/:slug", api.updateTopic, jwt, topicOwner)
	tg.DELETE("/:slug", api.destroyTopic, jwt, topicOwner)
	tg.GET("/:slug/challenges", api.queryTopicChallenges)

	// challenges
	chg := g.Group("/challenges")
	chg.POST("", api.createChallenge, jwt, teacherMiddleware(), verifiedEmailMiddleware())
	chg.GET("/:slug", api.retrieveChallenge)
	chg.DELETE("/:slug", api.destroyChallenge, jwt, challengeOwner)
	chg.POST("/:slug/check", api.checkAnswer, jwt)
	chg.POST("/:slug/submissions", api.createSubmission, jwt)
	chg.GET("/:slug/submissions", api.querySubmissions, jwt, challengeOwner)
}

// Course handlers

func (api *courseApi) createCourse(ctx echo.Context) error {
	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	crs, err := api.svc.CreateCourse(claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, crs)
}

func (api *courseApi) queryCourses(ctx echo.Context) error {
	filter := new(course.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []course.Course{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	courses, err := api.svc.QueryCourses(filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) retrieveCourse(ctx echo.Context) error {
	crs, err := api.svc.GetCourseBySlug(ctx.Param("slug"))
	if err != nil {
		return errors.Wrap(err, "finding course by slug")
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) updateCourse(ctx echo.Context) error {
	crs, ok := ctx.Get(contextObjectKey).(course.Course)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving course from context")
	}

	var data course.UpdateCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}
	if err := data.Validate(api.validate, crs); err != nil {
		return err
	}

	crs, err := api.svc.UpdateCourse(crs, data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) destroyCourse(ctx echo.Context) error {
	crs, ok := ctx.Get(contextObjectKey).(course.Course)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving course from context")
	}
	if err := api.svc.DeleteCourse(crs.ID); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) queryCourseTopics(ctx echo.Context) error {
	topics, err := api.svc.QueryTopicsByCourse(ctx.Param("slug"))
	if err != nil {
		return errors.Wrap(err, "querying topics")
	}
	if topics == nil {
		topics = []course.Topic{}
	}
	return ctx.JSON(http.StatusOK, topics)
}

// Topic handlers

func (api *courseApi) createTopic(ctx echo.Context) error {
	var data course.NewTopic
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTopic")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	topic, err := api.svc.CreateTopic(claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "creating topic")
	}
	return ctx.JSON(http.StatusCreated, topic)
}

func (api *courseApi) updateTopic(ctx echo.Context) error {
	topic, ok := ctx.Get(contextObjectKey).(course.Topic)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving topic from context")
	}

	var data UpdateTopicRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTopicRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	topic, err := api.svc.RenameTopic(topic, data.Title)
	if err != nil {
		return errors.Wrap(err, "renaming topic")
	}
	return ctx.JSON(http.StatusOK, topic)
}

func (api *courseApi) destroyTopic(ctx echo.Context) error {
	topic, ok := ctx.Get(contextObjectKey).(course.Topic)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving topic from context")
	}
	if err := api.svc.DeleteTopic(topic.ID); err != nil {
		return errors.Wrap(err, "deleting topic")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) queryTopicChallenges(ctx echo.Context) error {
	challenges, err := api.svc.QueryChallengesByTopic(ctx.Param("slug"))
	if err != nil {
		return errors.Wrap(err, "querying challenges")
	}
	if challenges == nil {
		challenges = []course.Challenge{}
	}
	return ctx.JSON(http.StatusOK, challenges)
}

// Challenge handlers

func (api *courseApi) createChallenge(ctx echo.Context) error {
	var data course.NewChallenge
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewChallenge")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	chal, err := api.svc.CreateChallenge(claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "creating challenge")
	}
	return ctx.JSON(http.StatusCreated, chal)
}

func (api *courseApi) retrieveChallenge(ctx echo.Context) error {
	chal, err := api.svc.GetChallengeBySlug(ctx.Param("slug"))
	if err != nil {
		return errors.Wrap(err, "finding challenge by slug")
	}
	return ctx.JSON(http.StatusOK, chal)
}

func (api *courseApi) destroyChallenge(ctx echo.Context) error {
	chal, ok := ctx.Get(contextObjectKey).(course.Challenge)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving challenge from context")
	}
	if err := api.svc.DeleteChallenge(chal.ID); err != nil {
		return errors.Wrap(err, "deleting challenge")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) checkAnswer(ctx echo.Context) error {
	var data CheckAnswerRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CheckAnswerRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	correct, err := api.svc.CheckAnswer(ctx.Param("slug"), data.Answer)
	if err != nil {
		if errors.Cause(err) == course.ErrAnswerNotConfigured {
			return core.NewValidationError(course.ErrAnswerNotConfigured)
		}
		return errors.Wrap(err, "checking answer")
	}
	return ctx.JSON(http.StatusOK, CheckAnswerResponse{Correct: correct})
}

func (api *courseApi) createSubmission(ctx echo.Context) error {
	var data course.NewSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubmission")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	sub, err := api.svc.CreateSubmission(claims.Subject, ctx.Param("slug"), data)
	if err != nil {
		return errors.Wrap(err, "creating submission")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *courseApi) querySubmissions(ctx echo.Context) error {
	chal, ok := ctx.Get(contextObjectKey).(course.Challenge)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving challenge from context")
	}

	subs, err := api.svc.QuerySubmissionsByChallenge(chal.Slug)
	if err != nil {
		return errors.Wrap(err, "querying submissions")
	}
	if subs == nil {
		subs = []course.Submission{}
	}
	return ctx.JSON(http.StatusOK, subs)
}

type (
	UpdateTopicRequest struct {
		Title string `json:"title" validate:"required,max=200"`
	}

	CheckAnswerRequest struct {
		Answer string `json:"answer" validate:"required"`
	}

	CheckAnswerResponse struct {
		Correct bool `json:"correct"`
	}
)

func (tr *UpdateTopicRequest) Validate(validate *validator.Validate) error {
	tr.Title = core.CleanString(tr.Title)
	return validate.Struct(tr)
}

func (cr *CheckAnswerRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(cr)
}
