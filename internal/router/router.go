package router

import (
	"database/sql"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "school-admin/docs"
	"school-admin/internal/adapters/notify/logdispatch"
	mem "school-admin/internal/adapters/storage/memory"
	pg "school-admin/internal/adapters/storage/postgres"
	"school-admin/internal/domain/approvals"
	"school-admin/internal/domain/authz"
	"school-admin/internal/domain/permissions"
	"school-admin/internal/middleware"
	"school-admin/internal/platform/logger"
	"school-admin/internal/ports/auth"
	"school-admin/internal/ports/directory"
	"school-admin/internal/ports/notify"
)

type Options struct {
	AuthVerifier auth.AuthVerifier // puede ser nil (modo dev)

	// Opcional: si viene, usa Postgres. Si no, in-memory.
	DB *sql.DB

	// Opcionales: permiten inyectar repos ya poblados (tests, seed).
	// Si vienen, ganan sobre DB.
	Directory   directory.Directory
	Approvals   approvals.Repository
	Permissions permissions.Repository

	// Opcional: destino de las notificaciones. Nil => solo log.
	Notifier notify.Dispatcher

	Log logger.Logger
}

// App expone el handler HTTP ya armado más los services, para que main
// (el barrido de vencidos) y los tests lleguen a la lógica sin pasar
// por la red.
type App struct {
	Handler     http.Handler
	Approvals   *approvals.Service
	Permissions *permissions.Service
}

func NewApp(opts Options) *App {
	log := opts.Log
	if log == nil {
		log = logger.NewFromEnv()
	}

	// Si no te pasan DB explícita, intenta por env (para dev/handoff)
	db := opts.DB
	if db == nil && opts.Approvals == nil {
		if dsn := os.Getenv("DB_DSN"); dsn != "" {
			opened, err := pg.Open(dsn)
			if err == nil {
				db = opened
			}
		}
	}

	dirRepo := opts.Directory
	apprRepo := opts.Approvals
	permRepo := opts.Permissions
	switch {
	case apprRepo != nil && permRepo != nil && dirRepo != nil:
		// repos inyectados
	case db != nil:
		dirRepo = pg.NewDirectoryRepo(db)
		apprRepo = pg.NewApprovalsRepo(db)
		permRepo = pg.NewPermissionsRepo(db)
	default:
		if dirRepo == nil {
			dirRepo = mem.NewDirectoryRepo()
		}
		if apprRepo == nil {
			apprRepo = mem.NewApprovalsRepo()
		}
		if permRepo == nil {
			permRepo = mem.NewPermissionsRepo()
		}
	}

	notifier := opts.Notifier
	if notifier == nil {
		notifier = logdispatch.New(log)
	}

	// El resolver y los services comparten la misma fuente de grants y
	// vínculos: quién puede aprobar y qué aparece como aprobable se
	// calculan con los mismos predicados.
	source := approvals.NewSource(apprRepo, dirRepo)
	resolver := authz.NewResolver(dirRepo, source, source)

	apprSvc := approvals.NewService(apprRepo, dirRepo, resolver, notifier, log)
	permSvc := permissions.NewService(permRepo, dirRepo, source, resolver, permissions.NewQRIssuer(), notifier, log)

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Use(middleware.AuthContext(opts.AuthVerifier))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/swagger/*", httpSwagger.WrapHandler)

	// Rutas por módulo
	approvals.RegisterRoutes(r, apprSvc, permSvc)
	permissions.RegisterRoutes(r, permSvc)

	return &App{
		Handler:     r,
		Approvals:   apprSvc,
		Permissions: permSvc,
	}
}

func NewRouter(opts Options) http.Handler {
	return NewApp(opts).Handler
}
