package support

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cucumber/godog"
	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/flatdoc/internal/journal"
	"github.com/MeKo-Tech/flatdoc/internal/ocr"
	"github.com/MeKo-Tech/flatdoc/internal/pipeline"
	"github.com/MeKo-Tech/flatdoc/internal/server"
)

// fixedEngine returns the same text for every image, or fails.
type fixedEngine struct {
	mu   sync.Mutex
	text string
	err  error
}

func (e *fixedEngine) Recognize(_ context.Context, _ image.Image, _ ocr.Options) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.text, e.err
}

func (e *fixedEngine) Close() error { return nil }

func (testCtx *TestContext) startServer(engine ocr.Engine) error {
	cfg := pipeline.DefaultConfig()
	cfg.InputDir = testCtx.InputDir
	cfg.OutputDir = testCtx.OutputDir
	d, err := pipeline.NewDispatcher(cfg, engine)
	if err != nil {
		return err
	}
	j, err := journal.Open(filepath.Join(testCtx.TempDir, "journal.db"))
	if err != nil {
		return err
	}
	testCtx.Journal = j
	testCtx.Loop = server.NewLoop(d, server.RecordTo(j))
	srv := server.NewServer(server.Config{InputDir: cfg.InputDir, MaxUploadMB: 10}, testCtx.Loop, d,
		server.WithJournal(j))
	testCtx.HTTPServer = httptest.NewServer(srv.Handler())
	return nil
}

func (testCtx *TestContext) aRunningFlatdocServerRecognizing(text string) error {
	return testCtx.startServer(&fixedEngine{text: text})
}

func (testCtx *TestContext) aRunningFlatdocServerWhoseRecognitionEngineFails() error {
	return testCtx.startServer(&fixedEngine{err: errors.New("engine crashed")})
}

func (testCtx *TestContext) iConnectOverWebsocket() error {
	if testCtx.HTTPServer == nil {
		return errors.New("server is not running")
	}
	url := "ws" + strings.TrimPrefix(testCtx.HTTPServer.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}
	_ = resp.Body.Close()
	testCtx.Conn = conn
	return nil
}

func (testCtx *TestContext) readReply() error {
	if err := testCtx.Conn.SetReadDeadline(time.Now().Add(time.Minute)); err != nil {
		return err
	}
	var r server.Reply
	if err := testCtx.Conn.ReadJSON(&r); err != nil {
		return fmt.Errorf("read reply: %w", err)
	}
	testCtx.Replies = append(testCtx.Replies, r)
	return nil
}

func (testCtx *TestContext) iRequest(filename string) error {
	if testCtx.Conn == nil {
		if err := testCtx.iConnectOverWebsocket(); err != nil {
			return err
		}
	}
	if err := testCtx.Conn.WriteJSON(server.Request{Filename: filename}); err != nil {
		return err
	}
	return testCtx.readReply()
}

func (testCtx *TestContext) iSendTheRawMessage(msg string) error {
	if err := testCtx.Conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		return err
	}
	return testCtx.readReply()
}

func (testCtx *TestContext) iSendABinaryFrame() error {
	if err := testCtx.Conn.WriteMessage(websocket.BinaryMessage, []byte{0x89, 'P', 'N', 'G'}); err != nil {
		return err
	}
	return testCtx.readReply()
}

func (testCtx *TestContext) theReplyStatusShouldBe(status string) error {
	r, err := testCtx.LastReply()
	if err != nil {
		return err
	}
	if r.Status != status {
		return fmt.Errorf("expected status %q, got %q (error: %+v)", status, r.Status, r.Error)
	}
	return nil
}

func (testCtx *TestContext) theReplyErrorKindShouldBe(kind string) error {
	r, err := testCtx.LastReply()
	if err != nil {
		return err
	}
	if r.Error == nil {
		return fmt.Errorf("expected error kind %q, got no error", kind)
	}
	if string(r.Error.Kind) != kind {
		return fmt.Errorf("expected error kind %q, got %q (%s)", kind, r.Error.Kind, r.Error.Message)
	}
	return nil
}

func (testCtx *TestContext) theReplyErrorStageShouldBe(stage string) error {
	r, err := testCtx.LastReply()
	if err != nil {
		return err
	}
	if r.Error == nil || r.Error.Stage != stage {
		return fmt.Errorf("expected error stage %q, got %+v", stage, r.Error)
	}
	return nil
}

func (testCtx *TestContext) theRecognizedTextShouldBe(text string) error {
	r, err := testCtx.LastReply()
	if err != nil {
		return err
	}
	if r.OCROutput == nil {
		return errors.New("reply has no ocr_output")
	}
	if r.OCROutput.ResStr != text {
		return fmt.Errorf("expected text %q, got %q", text, r.OCROutput.ResStr)
	}
	return nil
}

func (testCtx *TestContext) theOutputImageShouldExist() error {
	r, err := testCtx.LastReply()
	if err != nil {
		return err
	}
	if r.ImgOutputPath == "" {
		return errors.New("reply has no img_output_path")
	}
	if _, err := os.Stat(r.ImgOutputPath); err != nil {
		return fmt.Errorf("output image: %w", err)
	}
	return nil
}

func (testCtx *TestContext) theReplyShouldCarryTheServerPID() error {
	r, err := testCtx.LastReply()
	if err != nil {
		return err
	}
	if r.PID != os.Getpid() {
		return fmt.Errorf("expected pid %d, got %d", os.Getpid(), r.PID)
	}
	return nil
}

func (testCtx *TestContext) theLastTwoRepliesShouldUseDifferentOutputDirectories() error {
	n := len(testCtx.Replies)
	if n < 2 {
		return fmt.Errorf("need two replies, have %d", n)
	}
	a, b := testCtx.Replies[n-2], testCtx.Replies[n-1]
	if a.RequestID == b.RequestID {
		return fmt.Errorf("replies share request id %q", a.RequestID)
	}
	if filepath.Dir(a.ImgOutputPath) == filepath.Dir(b.ImgOutputPath) {
		return fmt.Errorf("replies share output directory %s", filepath.Dir(a.ImgOutputPath))
	}
	return nil
}

func (testCtx *TestContext) iUploadTo(filename, endpoint string) error {
	data, err := os.ReadFile(filepath.Join(testCtx.InputDir, filename))
	if err != nil {
		return err
	}
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "uploaded-"+filename)
	if err != nil {
		return err
	}
	if _, err := fw.Write(data); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	resp, err := http.Post(testCtx.HTTPServer.URL+endpoint, mw.FormDataContentType(), &body)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPResponse = string(raw)

	var r server.Reply
	if err := json.Unmarshal(raw, &r); err == nil && r.Status != "" {
		testCtx.Replies = append(testCtx.Replies, r)
	}
	return nil
}

func (testCtx *TestContext) iGET(endpoint string) error {
	resp, err := http.Get(testCtx.HTTPServer.URL + endpoint)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPResponse = string(raw)
	return nil
}

func (testCtx *TestContext) theResponseStatusShouldBe(statusStr string) error {
	status, err := strconv.Atoi(statusStr)
	if err != nil {
		return err
	}
	if testCtx.LastHTTPStatusCode != status {
		return fmt.Errorf("expected HTTP %d, got %d: %s", status, testCtx.LastHTTPStatusCode, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldContain(text string) error {
	if !strings.Contains(testCtx.LastHTTPResponse, text) {
		return fmt.Errorf("response does not contain %q: %s", text, testCtx.LastHTTPResponse)
	}
	return nil
}

// RegisterServerSteps registers the server and transport steps.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a running flatdoc server recognizing "([^"]*)"$`, testCtx.aRunningFlatdocServerRecognizing)
	sc.Step(`^a running flatdoc server whose recognition engine fails$`, testCtx.aRunningFlatdocServerWhoseRecognitionEngineFails)
	sc.Step(`^I connect over websocket$`, testCtx.iConnectOverWebsocket)
	sc.Step(`^I request "([^"]*)"$`, testCtx.iRequest)
	sc.Step(`^I send the raw message '([^']*)'$`, testCtx.iSendTheRawMessage)
	sc.Step(`^I send a binary frame$`, testCtx.iSendABinaryFrame)
	sc.Step(`^the reply status should be "([^"]*)"$`, testCtx.theReplyStatusShouldBe)
	sc.Step(`^the reply error kind should be "([^"]*)"$`, testCtx.theReplyErrorKindShouldBe)
	sc.Step(`^the reply error stage should be "([^"]*)"$`, testCtx.theReplyErrorStageShouldBe)
	sc.Step(`^the recognized text should be "([^"]*)"$`, testCtx.theRecognizedTextShouldBe)
	sc.Step(`^the output image should exist$`, testCtx.theOutputImageShouldExist)
	sc.Step(`^the reply should carry the server pid$`, testCtx.theReplyShouldCarryTheServerPID)
	sc.Step(`^the last two replies should use different output directories$`, testCtx.theLastTwoRepliesShouldUseDifferentOutputDirectories)
	sc.Step(`^I upload "([^"]*)" to "([^"]*)"$`, testCtx.iUploadTo)
	sc.Step(`^I GET "([^"]*)"$`, testCtx.iGET)
	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response should contain "([^"]*)"$`, testCtx.theResponseShouldContain)
}
