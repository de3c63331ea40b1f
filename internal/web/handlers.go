package web

import (
	"embed"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/JBpeople/stay-ledger/config"
	"github.com/JBpeople/stay-ledger/internal/auth"
	"github.com/JBpeople/stay-ledger/internal/models"
	"github.com/JBpeople/stay-ledger/internal/repository"
	"github.com/JBpeople/stay-ledger/internal/services"
)

//go:embed templates/*.html
var templatesFS embed.FS

const (
	sessionCookie = "session"
	flashCookie   = "flash"
)

type Handler struct {
	svc  *services.LedgerService
	cfg  repository.ConfigStore
	app  *config.Config
	log  *zap.Logger
	tmpl *template.Template
}

func NewHandler(svc *services.LedgerService, cfg repository.ConfigStore, app *config.Config, log *zap.Logger) *Handler {
	funcs := template.FuncMap{
		"money": func(d decimal.Decimal) string {
			return d.StringFixed(2)
		},
		"pct": func(v float64) string {
			return strconv.FormatFloat(v, 'f', 1, 64) + "%"
		},
	}
	tmpl := template.Must(template.New("").Funcs(funcs).ParseFS(templatesFS, "templates/*.html"))
	return &Handler{svc: svc, cfg: cfg, app: app, log: log, tmpl: tmpl}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/login", h.loginPage)
	r.Post("/login", h.login)
	r.Post("/logout", h.logout)

	r.Group(func(r chi.Router) {
		r.Use(h.requireLogin)
		r.Get("/", h.index)
		r.Post("/transactions", h.addTransaction)
		r.Get("/transactions/{id}/edit", h.editPage)
		r.Post("/transactions/{id}/edit", h.editTransaction)
		r.Post("/transactions/{id}/delete", h.deleteTransaction)
		r.Get("/monthly-report", h.monthlyReport)
		r.Get("/settings", h.settingsPage)
		r.Post("/settings", h.saveSettings)
	})

	return r
}

func (h *Handler) requireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(sessionCookie)
		if err != nil || !auth.VerifySessionToken(h.app.SecretKey, c.Value) {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.tmpl.ExecuteTemplate(w, name, data); err != nil {
		h.log.Error("render template failed", zap.String("template", name), zap.Error(err))
	}
}

// Flash messages ride a short-lived cookie and are consumed on the
// next page render.
func (h *Handler) setFlash(w http.ResponseWriter, msg string) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    url.QueryEscape(msg),
		Path:     "/",
		HttpOnly: true,
		MaxAge:   60,
	})
}

func (h *Handler) popFlash(w http.ResponseWriter, r *http.Request) string {
	c, err := r.Cookie(flashCookie)
	if err != nil || c.Value == "" {
		return ""
	}
	http.SetCookie(w, &http.Cookie{Name: flashCookie, Value: "", Path: "/", MaxAge: -1})
	msg, err := url.QueryUnescape(c.Value)
	if err != nil {
		return ""
	}
	return msg
}

type loginView struct {
	Flash string
}

func (h *Handler) loginPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, "login.html", loginView{Flash: h.popFlash(w, r)})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	password := r.FormValue("password")
	if !auth.CheckPassword(password, h.app.PasswordHash, h.app.Password) {
		h.setFlash(w, "密码错误，请重试。")
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	token, err := auth.NewSessionToken(h.app.SecretKey)
	if err != nil {
		h.log.Error("issue session token failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(auth.SessionTTL.Seconds()),
	})
	http.Redirect(w, r, "/", http.StatusFound)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
	http.Redirect(w, r, "/login", http.StatusFound)
}

type indexView struct {
	*services.Overview
	Flash      string
	Today      string
	Categories []string
}

func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	overview, err := h.svc.Overview()
	if err != nil {
		h.log.Error("load overview failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.render(w, "index.html", indexView{
		Overview:   overview,
		Flash:      h.popFlash(w, r),
		Today:      time.Now().Format("2006-01-02"),
		Categories: models.Categories,
	})
}

func (h *Handler) addTransaction(w http.ResponseWriter, r *http.Request) {
	err := h.svc.Add(
		r.FormValue("type"),
		r.FormValue("amount"),
		r.FormValue("category"),
		r.FormValue("note"),
		r.FormValue("happened_on"),
	)
	if err != nil {
		h.setFlash(w, err.Error())
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

type editView struct {
	Tx         *models.Transaction
	Flash      string
	Categories []string
}

func (h *Handler) editPage(w http.ResponseWriter, r *http.Request) {
	_, tx, ok := h.lookup(w, r)
	if !ok {
		return
	}
	h.render(w, "edit_transaction.html", editView{
		Tx:         tx,
		Flash:      h.popFlash(w, r),
		Categories: models.Categories,
	})
}

func (h *Handler) editTransaction(w http.ResponseWriter, r *http.Request) {
	id, _, ok := h.lookup(w, r)
	if !ok {
		return
	}
	err := h.svc.Update(id,
		r.FormValue("type"),
		r.FormValue("amount"),
		r.FormValue("category"),
		r.FormValue("note"),
		r.FormValue("happened_on"),
	)
	if err != nil {
		h.setFlash(w, err.Error())
		http.Redirect(w, r, "/transactions/"+strconv.FormatInt(id, 10)+"/edit", http.StatusFound)
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (h *Handler) deleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if err := h.svc.Delete(id); err != nil {
		h.log.Error("delete transaction failed", zap.Int64("id", id), zap.Error(err))
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

// lookup resolves the {id} route parameter to a stored transaction,
// redirecting home with a flash when it does not exist.
func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (int64, *models.Transaction, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return 0, nil, false
	}
	tx, err := h.svc.Get(id)
	if err != nil {
		h.log.Error("load transaction failed", zap.Int64("id", id), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return 0, nil, false
	}
	if tx == nil {
		h.setFlash(w, "记录不存在。")
		http.Redirect(w, r, "/", http.StatusFound)
		return 0, nil, false
	}
	return id, tx, true
}

func (h *Handler) monthlyReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.MonthlyReport(r.URL.Query().Get("month"), time.Now())
	if err != nil {
		h.log.Error("build monthly report failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.render(w, "monthly_report.html", report)
}

type settingsView struct {
	Flash         string
	Enabled       bool
	BotToken      string
	AllowedChatID string
	Categories    []string
}

func (h *Handler) settingsPage(w http.ResponseWriter, r *http.Request) {
	enabled, _ := h.cfg.GetConfig(repository.ConfigTelegramEnabled, "0")
	token, _ := h.cfg.GetConfig(repository.ConfigTelegramBotToken, "")
	chatID, _ := h.cfg.GetConfig(repository.ConfigTelegramAllowedChatID, "")
	h.render(w, "settings.html", settingsView{
		Flash:         h.popFlash(w, r),
		Enabled:       enabled == "1",
		BotToken:      token,
		AllowedChatID: chatID,
		Categories:    models.Categories,
	})
}

func (h *Handler) saveSettings(w http.ResponseWriter, r *http.Request) {
	enabled := "0"
	if r.FormValue("telegram_enabled") == "on" {
		enabled = "1"
	}
	pairs := map[string]string{
		repository.ConfigTelegramEnabled:       enabled,
		repository.ConfigTelegramBotToken:      strings.TrimSpace(r.FormValue("telegram_bot_token")),
		repository.ConfigTelegramAllowedChatID: strings.TrimSpace(r.FormValue("telegram_allowed_chat_id")),
	}
	for key, value := range pairs {
		if err := h.cfg.SetConfig(key, value); err != nil {
			h.log.Error("save setting failed", zap.String("key", key), zap.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
	}
	h.setFlash(w, "配置已保存。")
	http.Redirect(w, r, "/settings", http.StatusFound)
}
