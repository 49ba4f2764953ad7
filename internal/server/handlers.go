package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/KaramelBytes/assayfit-cli/internal/analysis"
	"github.com/KaramelBytes/assayfit-cli/internal/assay"
	"github.com/KaramelBytes/assayfit-cli/internal/chart"
	"github.com/KaramelBytes/assayfit-cli/internal/history"
)

const errNoFile = "No file provided"

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// handleKinetic serves the kinetic upload routes. A blank variant-name falls
// back to the default label unless requireLabel is set.
func (s *Server) handleKinetic(requireLabel bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		label := strings.TrimSpace(c.FormValue("variant-name"))
		if label == "" && requireLabel {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "variant-name is required"})
		}
		return s.analyze(c, label, assay.KineticAssay)
	}
}

func (s *Server) handleThermo(c echo.Context) error {
	label := strings.TrimSpace(c.FormValue("variant-name"))
	return s.analyze(c, label, assay.ThermoVertical, assay.ThermoHorizontal)
}

func (s *Server) analyze(c echo.Context, label string, want ...assay.LayoutKind) error {
	fh, err := c.FormFile("file")
	if err != nil || fh.Filename == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: errNoFile})
	}
	f, err := fh.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: errNoFile})
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "read upload: "+err.Error())
	}

	reqID := c.Response().Header().Get(echo.HeaderXRequestID)
	res, err := s.analyzer.Analyze(analysis.Input{Name: fh.Filename, Data: data, Label: label, Want: want})
	if err != nil {
		kind := assay.Kind(err)
		s.logger.Warn("analysis failed", "request_id", reqID, "file", fh.Filename, "kind", kind, "error", err)
		if kind == "" {
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		}
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: kind})
	}

	body := res.Fields()
	body["label"] = res.Label
	body["points"] = res.Points
	if len(res.Warnings) > 0 {
		body["warnings"] = res.Warnings
	}
	for _, nc := range res.Charts {
		img, err := chart.RenderBase64(nc.Spec, s.opts.ChartSize)
		if err != nil {
			s.logger.Error("chart rendering failed", "request_id", reqID, "chart", nc.Key, "error", err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: "render " + nc.Key + ": " + err.Error()})
		}
		body[nc.Key] = img
	}

	if s.history != nil {
		if err := s.history.Save(c.Request().Context(), res); err != nil {
			s.logger.Warn("history save failed", "request_id", reqID, "run_id", res.RunID, "error", err)
		}
	}
	s.logger.Info("fit completed", "request_id", reqID, "run_id", res.RunID, "layout", res.Layout, "label", res.Label)
	return c.JSON(http.StatusOK, body)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleHistoryList(c echo.Context) error {
	if s.history == nil {
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "fit history is disabled"})
	}
	limit := 0
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid limit"})
		}
		limit = n
	}
	recs, err := s.history.List(c.Request().Context(), c.QueryParam("label"), limit)
	if err != nil {
		return err
	}
	if recs == nil {
		recs = []history.Record{}
	}
	return c.JSON(http.StatusOK, recs)
}

func (s *Server) handleHistoryGet(c echo.Context) error {
	if s.history == nil {
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "fit history is disabled"})
	}
	rec, err := s.history.Get(c.Request().Context(), c.Param("id"))
	if errors.Is(err, history.ErrNotFound) {
		return c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rec)
}
