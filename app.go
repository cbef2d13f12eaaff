package ocrchat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/chriskillpack/ocrchat/chat"
	"github.com/chriskillpack/ocrchat/extractor"
)

const (
	ActionUpload  = "upload"
	ActionExtract = "extract"

	MaxUploadSize = 5 << 20
	UploadTimeout = 180 * time.Second

	welcomeText    = "👋 Welcome to Llama OCR! Upload an image and click Extract Text to process it."
	selectText     = "Select an action:"
	askText        = "Please upload an image file"
	uploadedText   = "✅ Image '%s' uploaded successfully! Click 'Extract Text' to process it."
	processingText = "🔄 Processing image..."
	extractedText  = "✅ Text extracted successfully!"
)

// AcceptedTypes are the content types an upload may have.
var AcceptedTypes = []string{"image/jpeg", "image/png", "image/jpg"}

// ErrNoImage is the outcome of an extraction requested before any upload.
var ErrNoImage = errors.New("no image uploaded")

// UploadError is the outcome of a rejected or failed upload.
type UploadError struct{ Err error }

func (e *UploadError) Error() string { return "error uploading image: " + e.Err.Error() }
func (e *UploadError) Unwrap() error { return e.Err }

// ExtractError is the outcome of a failed extraction, whether the image
// could not be normalized or the remote call failed.
type ExtractError struct{ Err error }

func (e *ExtractError) Error() string { return "error processing image: " + e.Err.Error() }
func (e *ExtractError) Unwrap() error { return e.Err }

// Outcome is the result of a chat callback. Callbacks never write their final
// result to the session, the caller applies it with Render. The one exception
// is Extract's processing notice, posted before the remote call so it is
// visible while the call is in flight.
type Outcome struct {
	Messages []chat.Message
	Err      error

	// OfferActions re-offers the action buttons after the messages
	OfferActions bool
}

// Render applies o to the session transcript. A failed outcome always
// re-offers the actions so the user can carry on.
func Render(s *chat.Session, o Outcome) {
	s.Post(o.Messages...)
	if o.Err != nil {
		s.Post(chat.NewMessage("❌ " + ErrorText(o.Err)))
	}
	if o.OfferActions || o.Err != nil {
		s.Post(ActionsMessage())
	}
}

// ErrorText is the user facing text for an outcome error.
func ErrorText(err error) string {
	var (
		ue *UploadError
		ee *ExtractError
	)
	switch {
	case errors.Is(err, ErrNoImage):
		return "Please upload an image first!"
	case errors.As(err, &ue):
		return "Error uploading image: " + ue.Err.Error()
	case errors.As(err, &ee):
		msg := ee.Err.Error()
		if rest, ok := strings.CutPrefix(msg, extractor.ErrEncodeImage.Error()); ok {
			msg = "Error encoding image" + rest
		}
		return "Error: Error processing image: " + msg
	}
	return "Error: " + err.Error()
}

// Actions are the two buttons offered throughout a chat.
func Actions() []chat.Action {
	return []chat.Action{
		{Name: ActionUpload, Label: "Upload Image 📁", Value: ActionUpload},
		{Name: ActionExtract, Label: "Extract Text 🔍", Value: ActionExtract},
	}
}

func ActionsMessage() chat.Message {
	msg := chat.NewMessage(selectText)
	msg.Actions = Actions()
	return msg
}

type AppOptions struct {
	MaxUploadSize int64         // 0 uses MaxUploadSize
	UploadTimeout time.Duration // 0 uses UploadTimeout

	History *DB         // optional
	Logger  *log.Logger // if nil uses log.Default()
}

// App holds the chat callbacks. It has no per-user state, everything about a
// user lives in their chat.Session.
type App struct {
	ex      extractor.Extractor
	history *DB
	logger  *log.Logger

	maxUploadSize int64
	uploadTimeout time.Duration

	normalize func([]byte) (extractor.Image, error)
}

func NewApp(ex extractor.Extractor, opts AppOptions) *App {
	a := &App{
		ex:            ex,
		history:       opts.History,
		logger:        opts.Logger,
		maxUploadSize: opts.MaxUploadSize,
		uploadTimeout: opts.UploadTimeout,
		normalize:     extractor.Normalize,
	}
	if a.logger == nil {
		a.logger = log.Default()
	}
	if a.maxUploadSize <= 0 {
		a.maxUploadSize = MaxUploadSize
	}
	if a.uploadTimeout <= 0 {
		a.uploadTimeout = UploadTimeout
	}

	return a
}

func (a *App) MaxUploadSize() int64 { return a.maxUploadSize }

// Start greets a new session and offers the actions.
func (a *App) Start(s *chat.Session) Outcome {
	a.logger.Printf("session start - %s\n", s.ID)
	return Outcome{
		Messages:     []chat.Message{chat.NewMessage(welcomeText)},
		OfferActions: true,
	}
}

// Action runs the callback registered for the named action.
func (a *App) Action(ctx context.Context, s *chat.Session, name string) Outcome {
	switch name {
	case ActionUpload:
		return a.RequestUpload(s)
	case ActionExtract:
		return a.Extract(ctx, s)
	}
	return Outcome{Err: fmt.Errorf("unknown action %q", name)}
}

// RequestUpload asks the user for an image. The request expires after the
// upload timeout.
func (a *App) RequestUpload(s *chat.Session) Outcome {
	ask := chat.NewAskFile(askText, AcceptedTypes, a.maxUploadSize, a.uploadTimeout)
	if err := s.Ask(ask); err != nil {
		return Outcome{Err: err}
	}

	return Outcome{Messages: []chat.Message{chat.NewMessage(askText)}}
}

// Upload answers the session's outstanding file request with f. Files that
// are too large or of the wrong type are rejected here, before they are
// stored or decoded.
func (a *App) Upload(s *chat.Session, f chat.File) Outcome {
	ask := s.TakeAsk()
	if err := ask.Check(f, time.Now()); err != nil {
		a.logger.Printf("upload rejected - %s: %s\n", s.ID, err)
		return Outcome{Err: &UploadError{err}}
	}

	s.SetImage(f)
	a.logger.Printf("upload - %s: %q %d bytes\n", s.ID, f.Name, len(f.Data))

	msg := chat.NewMessage(fmt.Sprintf(uploadedText, f.Name))
	msg.Elements = []chat.Element{
		chat.NewImageElement("uploaded_image", f.SniffedType(), f.Data),
	}
	return Outcome{Messages: []chat.Message{msg}}
}

// UploadFailed answers the outstanding file request with an error, for
// uploads that failed before a File could be read, e.g. a body over the
// size limit.
func (a *App) UploadFailed(s *chat.Session, err error) Outcome {
	s.TakeAsk()
	a.logger.Printf("upload failed - %s: %s\n", s.ID, err)
	return Outcome{Err: &UploadError{err}}
}

// ExpireAsk closes the session's file request if nobody answered it in
// time. It reports false when there was nothing to expire.
func (a *App) ExpireAsk(s *chat.Session, now time.Time) (Outcome, bool) {
	ask := s.PendingAsk()
	if ask == nil || !now.After(ask.Deadline) {
		return Outcome{}, false
	}
	s.TakeAsk()
	return Outcome{Err: &UploadError{chat.ErrAskExpired}}, true
}

// Extract sends the session's image to the extractor and returns the text.
// The extractor is called exactly once, and never when nothing has been
// uploaded.
func (a *App) Extract(ctx context.Context, s *chat.Session) Outcome {
	f, ok := s.Image()
	if !ok {
		return Outcome{Err: ErrNoImage, OfferActions: true}
	}
	if err := s.BeginExtract(); err != nil {
		return Outcome{Err: err}
	}
	defer s.EndExtract()

	// In-flight notice, see Outcome
	s.Post(chat.NewMessage(processingText))

	text, err := a.run(ctx, s.ID, f)
	if err != nil {
		return Outcome{Err: &ExtractError{err}, OfferActions: true}
	}

	return Outcome{
		Messages: []chat.Message{
			chat.NewMessage(extractedText),
			chat.NewMessage(text),
		},
		OfferActions: true,
	}
}

// ExtractFile runs one extraction outside of any chat, e.g. from the command
// line. There is no upload boundary, any format the decoders understand is
// accepted. source is recorded in place of a session id.
func (a *App) ExtractFile(ctx context.Context, source string, f chat.File) (string, error) {
	text, err := a.run(ctx, source, f)
	if err != nil {
		return "", &ExtractError{err}
	}
	return text, nil
}

func (a *App) run(ctx context.Context, source string, f chat.File) (string, error) {
	ex := &Extraction{
		SessionId: source,
		FileName:  f.Name,
		FileSize:  len(f.Data),
		Backend:   a.ex.Name(),
		Model:     a.ex.Model(),
		StartedAt: time.Now(),
	}
	text, err := a.extract(ctx, f, ex)
	ex.FinishedAt = time.Now()
	a.record(ctx, ex)

	if err != nil {
		a.logger.Printf("extract error - %s: %s\n", source, err)
		return "", err
	}
	a.logger.Printf("extract - %s: %d chars in %s\n", source, len(text), ex.Duration().Round(time.Millisecond))

	return text, nil
}

func (a *App) extract(ctx context.Context, f chat.File, ex *Extraction) (string, error) {
	img, err := a.normalize(f.Data)
	if err != nil {
		ex.Err = sql.NullString{String: err.Error(), Valid: true}
		return "", err
	}
	ex.Width, ex.Height = img.Width, img.Height

	text, err := a.ex.ExtractText(ctx, img)
	if err != nil {
		ex.Err = sql.NullString{String: err.Error(), Valid: true}
		return "", err
	}
	ex.ResultLen = len(text)

	return text, nil
}

func (a *App) record(ctx context.Context, ex *Extraction) {
	if a.history == nil {
		return
	}
	// The request may already be cancelled, the record is still wanted
	ctx = context.WithoutCancel(ctx)
	if err := a.history.RecordExtraction(ctx, ex); err != nil {
		a.logger.Printf("history error - %s\n", err)
	}
}
