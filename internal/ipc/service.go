package ipc

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"screendescribe/internal/daemon"
	"screendescribe/internal/logging"
	"screendescribe/internal/services"
)

// service is registered with net/rpc; every exported method with the
// (request, *response) error shape becomes an RPC named "Screendescribe.<Method>".
type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) Start(_ StartRequest, resp *StartResponse) error {
	if err := s.daemon.Resume(); err != nil {
		resp.Started = false
		resp.Message = err.Error()
		return nil
	}
	resp.Started = true
	resp.Message = "scheduled runs resumed"
	s.logger.Info("scheduler resumed via IPC", logging.String(logging.FieldEventType, "ipc_resume"))
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	resp.Stopped = s.daemon.Pause()
	s.logger.Info("scheduler paused via IPC",
		logging.String(logging.FieldEventType, "ipc_pause"),
		logging.Bool("was_running", resp.Stopped))
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	st := s.daemon.Status(s.ctx)
	*resp = StatusResponse{
		Snapshot:         st.Snapshot,
		SchedulerRunning: st.SchedulerRunning,
		Paused:           st.Paused,
		IntervalSeconds:  st.IntervalSeconds,
		NextRunAt:        st.NextRunAt,
		StartedAt:        st.StartedAt,
		PID:              st.PID,
		ConfigPath:       st.ConfigPath,
		LockPath:         st.LockPath,
		LogPath:          st.LogPath,
		HistoryPath:      st.HistoryPath,
		StageHealth:      st.Health,
		Preflight:        st.Preflight,
	}
	return nil
}

func (s *service) Trigger(_ TriggerRequest, resp *TriggerResponse) error {
	ctx := services.WithRequestID(context.WithoutCancel(s.ctx), uuid.NewString())
	result := s.daemon.Trigger(ctx)
	*resp = TriggerResponse{
		Outcome:     string(result.Outcome),
		RunID:       result.RunID,
		Description: result.Description,
		Stage:       result.Stage,
		Error:       result.ErrorMessage(),
		StartedAt:   result.StartedAt,
		FinishedAt:  result.FinishedAt,
	}
	return nil
}

func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	resp.Events = s.daemon.LogTail(req.Limit, req.Level)
	resp.LogPath = s.daemon.LogPath()
	return nil
}

func (s *service) History(req HistoryRequest, resp *HistoryResponse) error {
	runs, err := s.daemon.History(s.ctx, req.Limit)
	if err != nil {
		return err
	}
	resp.Runs = runs
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	if err != nil {
		return err
	}
	resp.Sent = sent
	resp.Message = message
	return nil
}
