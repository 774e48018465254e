package controllers

import (
	"bufio"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/config"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/models"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/models/activitymodel"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/observable"
	redisservice "github.com/mynaparrot/plugnmeet-dlspeech/pkg/services/redis"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/speech"
	"github.com/sirupsen/logrus"
)

// BridgeController exposes speech sessions over HTTP.
type BridgeController struct {
	AppConfig   *config.AppConfig
	BridgeModel *models.BridgeModel
	AuthModel   *models.AuthModel
	logger      *logrus.Entry
}

func NewBridgeController(config *config.AppConfig, bridgeModel *models.BridgeModel, authModel *models.AuthModel, logger *logrus.Logger) *BridgeController {
	return &BridgeController{
		AppConfig:   config,
		BridgeModel: bridgeModel,
		AuthModel:   authModel,
		logger:      logger.WithField("controller", "bridge"),
	}
}

type SessionReq struct {
	SessionId string `json:"session_id"`
}

type CreateSessionRes struct {
	Status  bool                `json:"status"`
	Msg     string              `json:"msg"`
	Session *models.SessionInfo `json:"session,omitempty"`
	Token   string              `json:"token,omitempty"`
}

type TranscriptsRes struct {
	Status      bool                            `json:"status"`
	Msg         string                          `json:"msg"`
	Transcripts []*redisservice.TranscriptEntry `json:"transcripts"`
}

type SessionInfoRes struct {
	Status  bool                `json:"status"`
	Msg     string              `json:"msg"`
	Session *models.SessionInfo `json:"session,omitempty"`
}

type ListSessionsReq struct {
	From  int `json:"from"`
	Limit int `json:"limit"`
}

type ListSessionsRes struct {
	Status   bool                  `json:"status"`
	Msg      string                `json:"msg"`
	Total    int64                 `json:"total"`
	Sessions []*models.SessionInfo `json:"sessions"`
}

type SendSpeechReq struct {
	Text string `json:"text"`
	// Audio is WAV content, 16kHz 16bit mono
	Audio []byte `json:"audio"`
}

type SendSpeechRes struct {
	Status     bool   `json:"status"`
	Msg        string `json:"msg"`
	Recognized string `json:"recognized"`
}

type PostActivityRes struct {
	Status bool   `json:"status"`
	Msg    string `json:"msg"`
	Id     string `json:"id,omitempty"`
}

// HandleCreateSession connects a new conversation and returns its token.
func (bc *BridgeController) HandleCreateSession(c *fiber.Ctx) error {
	req := new(models.CreateSessionReq)
	if len(c.Body()) > 0 {
		if err := json.Unmarshal(c.Body(), req); err != nil {
			return sendCommonResponse(c, false, err.Error())
		}
	}

	info, err := bc.BridgeModel.CreateSession(c.UserContext(), req)
	if err != nil {
		if errors.Is(err, models.ErrMaxSessionsReached) {
			c.Status(fiber.StatusServiceUnavailable)
		}
		return sendCommonResponse(c, false, err.Error())
	}

	token, err := bc.AuthModel.GenerateSessionToken(info.SessionId, info.UserId)
	if err != nil {
		_ = bc.BridgeModel.EndSession(info.SessionId, "token error")
		return sendCommonResponse(c, false, err.Error())
	}

	return c.JSON(CreateSessionRes{
		Status:  true,
		Msg:     "success",
		Session: info,
		Token:   token,
	})
}

func (bc *BridgeController) HandleEndSession(c *fiber.Ctx) error {
	req := new(SessionReq)
	if err := json.Unmarshal(c.Body(), req); err != nil {
		return sendCommonResponse(c, false, err.Error())
	}
	if req.SessionId == "" {
		return sendCommonResponse(c, false, "session_id required")
	}

	if err := bc.BridgeModel.EndSession(req.SessionId, "requested"); err != nil {
		return sendCommonResponse(c, false, err.Error())
	}
	return sendCommonResponse(c, true, "success")
}

func (bc *BridgeController) HandleGetTranscripts(c *fiber.Ctx) error {
	req := new(SessionReq)
	if err := json.Unmarshal(c.Body(), req); err != nil {
		return sendCommonResponse(c, false, err.Error())
	}
	if req.SessionId == "" {
		return sendCommonResponse(c, false, "session_id required")
	}

	entries, err := bc.BridgeModel.GetTranscripts(req.SessionId)
	if err != nil {
		return sendCommonResponse(c, false, err.Error())
	}
	if entries == nil {
		entries = []*redisservice.TranscriptEntry{}
	}

	return c.JSON(TranscriptsRes{
		Status:      true,
		Msg:         "success",
		Transcripts: entries,
	})
}

func (bc *BridgeController) HandleGetSessionInfo(c *fiber.Ctx) error {
	req := new(SessionReq)
	if err := json.Unmarshal(c.Body(), req); err != nil {
		return sendCommonResponse(c, false, err.Error())
	}
	if req.SessionId == "" {
		return sendCommonResponse(c, false, "session_id required")
	}

	info, err := bc.BridgeModel.GetSessionInfo(req.SessionId)
	if err != nil {
		if errors.Is(err, models.ErrSessionNotFound) {
			c.Status(fiber.StatusNotFound)
		}
		return sendCommonResponse(c, false, err.Error())
	}

	return c.JSON(SessionInfoRes{
		Status:  true,
		Msg:     "success",
		Session: info,
	})
}

// HandleListSessions pages through stored sessions, latest first.
func (bc *BridgeController) HandleListSessions(c *fiber.Ctx) error {
	req := new(ListSessionsReq)
	if len(c.Body()) > 0 {
		if err := json.Unmarshal(c.Body(), req); err != nil {
			return sendCommonResponse(c, false, err.Error())
		}
	}
	if req.From < 0 || req.Limit < 0 {
		return sendCommonResponse(c, false, "from and limit must not be negative")
	}

	list, total, err := bc.BridgeModel.ListSessions(req.From, req.Limit)
	if err != nil {
		return sendCommonResponse(c, false, err.Error())
	}

	return c.JSON(ListSessionsRes{
		Status:   true,
		Msg:      "success",
		Total:    total,
		Sessions: list,
	})
}

// HandleSendSpeech sends text (synthesized first) or recorded audio as one turn.
func (bc *BridgeController) HandleSendSpeech(c *fiber.Ctx) error {
	sessionId := c.Locals("sessionId").(string)

	req := new(SendSpeechReq)
	if err := json.Unmarshal(c.Body(), req); err != nil {
		return sendCommonResponse(c, false, err.Error())
	}

	var recognized string
	var err error
	switch {
	case len(req.Audio) > 0:
		var pcm []byte
		pcm, err = speech.DecodeWave(req.Audio)
		if err != nil {
			return sendCommonResponse(c, false, err.Error())
		}
		recognized, err = bc.BridgeModel.SendAudio(c.UserContext(), sessionId, pcm)
	case req.Text != "":
		recognized, err = bc.BridgeModel.SendText(c.UserContext(), sessionId, req.Text)
	default:
		return sendCommonResponse(c, false, "text or audio required")
	}
	if err != nil {
		return sendCommonResponse(c, false, err.Error())
	}

	return c.JSON(SendSpeechRes{
		Status:     true,
		Msg:        "success",
		Recognized: recognized,
	})
}

func (bc *BridgeController) HandlePostActivity(c *fiber.Ctx) error {
	sessionId := c.Locals("sessionId").(string)

	a, err := activitymodel.Unmarshal(c.Body())
	if err != nil {
		return sendCommonResponse(c, false, err.Error())
	}
	if a.Type == "" {
		a.Type = activitymodel.TypeMessage
	}

	id, err := bc.BridgeModel.PostActivity(c.UserContext(), sessionId, a)
	if err != nil {
		return sendCommonResponse(c, false, err.Error())
	}

	return c.JSON(PostActivityRes{
		Status: true,
		Msg:    "success",
		Id:     id,
	})
}

// HandleActivities streams the session's inbound activities as server-sent
// events until the session ends or the client goes away.
func (bc *BridgeController) HandleActivities(c *fiber.Ctx) error {
	sessionId := c.Locals("sessionId").(string)

	src, err := bc.BridgeModel.Subscribe(sessionId)
	if err != nil {
		c.Status(fiber.StatusNotFound)
		return sendCommonResponse(c, false, err.Error())
	}

	feed := newActivityFeed(activityFeedSize)
	sub := src.Subscribe(observable.Observer[*activitymodel.Activity]{
		Next:     feed.push,
		Error:    feed.fail,
		Complete: feed.finish,
	})
	log := bc.logger.WithField("sessionId", sessionId)

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer func() {
			sub.Unsubscribe()
			feed.finish()
		}()

		for a := range feed.events {
			data, err := a.Marshal()
			if err != nil {
				log.WithError(err).Errorln("failed to encode activity")
				continue
			}
			if _, err = fmt.Fprintf(w, "id: %s\nevent: activity\ndata: %s\n\n", a.Id, data); err != nil {
				return
			}
			if err = w.Flush(); err != nil {
				log.Debugln("activity stream client disconnected")
				return
			}
		}

		if feed.overflowed() {
			log.Warnln("activity stream client fell behind, closing stream")
			_, _ = fmt.Fprint(w, "event: overflow\ndata: {}\n\n")
		} else {
			_, _ = fmt.Fprint(w, "event: end\ndata: {}\n\n")
		}
		_ = w.Flush()
	})

	return nil
}
