package web

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"html/template"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/chriskillpack/ocrchat"
	"github.com/chriskillpack/ocrchat/chat"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

const sessionCookie = "ocrchat_session"

var (
	//go:embed tmpl/*.html
	tmplFS embed.FS

	//go:embed static
	staticFS embed.FS

	indexTmpl *template.Template
)

func init() {
	indexTmpl = template.Must(template.ParseFS(tmplFS, "tmpl/index.html"))
}

type Server struct {
	hs     *http.Server
	app    *ocrchat.App
	store  *chat.Store
	md     goldmark.Markdown
	logger *log.Logger
}

func NewServer(app *ocrchat.App, store *chat.Store, addr string, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	srv := &Server{
		app:    app,
		store:  store,
		md:     goldmark.New(goldmark.WithExtensions(extension.GFM)),
		logger: logger,
	}

	srv.hs = &http.Server{
		Addr:    addr,
		Handler: srv.Handler(),
	}

	return srv
}

func (s *Server) Start() error {
	err := s.hs.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.hs.Shutdown(ctx)
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /static/", http.FileServerFS(staticFS))
	mux.Handle("GET /healthz", s.serveHealth())
	mux.Handle("GET /element/{id}", s.serveElement())
	mux.Handle("POST /action/{name}", s.serveAction())
	mux.Handle("POST /upload", s.serveUpload())
	mux.Handle("POST /end", s.serveEnd())
	mux.Handle("GET /{$}", s.serveRoot())

	return mux
}

// session returns the caller's live session. When create is set a missing or
// expired session is replaced by a new one, which is greeted.
func (s *Server) session(w http.ResponseWriter, req *http.Request, create bool) (*chat.Session, bool) {
	if c, err := req.Cookie(sessionCookie); err == nil {
		if sess, ok := s.store.Get(c.Value); ok {
			return sess, true
		}
	}
	if !create {
		return nil, false
	}

	sess := s.store.Create()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	ocrchat.Render(sess, s.app.Start(sess))
	return sess, true
}

func (s *Server) serveRoot() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		sess, _ := s.session(w, req, true)
		if o, expired := s.app.ExpireAsk(sess, time.Now()); expired {
			ocrchat.Render(sess, o)
		}

		buf := new(bytes.Buffer)
		if err := indexTmpl.Execute(buf, s.page(sess)); err != nil {
			s.logger.Printf("template error - %s\n", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		w.Write(buf.Bytes())
	}
}

func (s *Server) serveAction() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		sess, _ := s.session(w, req, true)
		name := req.PathValue("name")
		s.logger.Printf("action - %s: %s\n", sess.ID, name)

		ocrchat.Render(sess, s.app.Action(req.Context(), sess, name))
		http.Redirect(w, req, "/", http.StatusSeeOther)
	}
}

func (s *Server) serveUpload() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		sess, _ := s.session(w, req, true)

		f, err := s.readUpload(w, req)
		if err != nil {
			ocrchat.Render(sess, s.app.UploadFailed(sess, err))
		} else {
			ocrchat.Render(sess, s.app.Upload(sess, f))
		}
		http.Redirect(w, req, "/", http.StatusSeeOther)
	}
}

// readUpload reads the single file of a multipart upload. The body is capped
// a little above the upload limit so the multipart framing fits, anything
// bigger is reported as chat.ErrTooLarge.
func (s *Server) readUpload(w http.ResponseWriter, req *http.Request) (chat.File, error) {
	limit := s.app.MaxUploadSize()
	req.Body = http.MaxBytesReader(w, req.Body, limit+64<<10)

	if err := req.ParseMultipartForm(limit); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return chat.File{}, chat.ErrTooLarge
		}
		return chat.File{}, err
	}
	defer req.MultipartForm.RemoveAll()

	file, hdr, err := req.FormFile("file")
	if err != nil {
		return chat.File{}, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return chat.File{}, err
	}

	return chat.File{
		Name: hdr.Filename,
		Type: hdr.Header.Get("Content-Type"),
		Data: data,
	}, nil
}

func (s *Server) serveElement() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		sess, ok := s.session(w, req, false)
		if !ok {
			http.NotFound(w, req)
			return
		}
		el, ok := sess.Element(req.PathValue("id"))
		if !ok {
			http.NotFound(w, req)
			return
		}

		w.Header().Set("Content-Type", el.MIME)
		w.Header().Set("Cache-Control", "private, max-age=3600")
		w.WriteHeader(http.StatusOK)
		w.Write(el.Content)
	}
}

func (s *Server) serveEnd() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if sess, ok := s.session(w, req, false); ok {
			s.store.End(sess.ID)
			s.logger.Printf("session end - %s\n", sess.ID)
		}
		http.SetCookie(w, &http.Cookie{
			Name:   sessionCookie,
			Value:  "",
			Path:   "/",
			MaxAge: -1,
		})
		http.Redirect(w, req, "/", http.StatusSeeOther)
	}
}

func (s *Server) serveHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok\n"))
	}
}

type elementView struct {
	Name string
	URL  string
}

type messageView struct {
	Author   string
	HTML     template.HTML
	Elements []elementView
}

type askView struct {
	Content string
	Accept  string
	MaxMB   int64
}

type pageView struct {
	Messages []messageView
	Actions  []chat.Action
	Ask      *askView
	Busy     bool
}

func (s *Server) page(sess *chat.Session) pageView {
	msgs := sess.Messages()
	pv := pageView{
		Messages: make([]messageView, 0, len(msgs)),
		Actions:  sess.Actions(),
		Busy:     sess.State() == chat.StateExtracting,
	}
	for _, m := range msgs {
		mv := messageView{
			Author: m.Author,
			HTML:   s.renderMarkdown(m.Content),
		}
		for _, el := range m.Elements {
			mv.Elements = append(mv.Elements, elementView{Name: el.Name, URL: "/element/" + el.ID})
		}
		pv.Messages = append(pv.Messages, mv)
	}
	if ask := sess.PendingAsk(); ask != nil {
		pv.Ask = &askView{
			Content: ask.Content,
			Accept:  strings.Join(ask.Accept, ","),
			MaxMB:   ask.MaxSize >> 20,
		}
	}

	return pv
}

// renderMarkdown converts message markdown to HTML. Raw HTML in the source,
// e.g. from a model's response, is omitted by goldmark's default renderer.
func (s *Server) renderMarkdown(src string) template.HTML {
	buf := new(bytes.Buffer)
	if err := s.md.Convert([]byte(src), buf); err != nil {
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(buf.String())
}
