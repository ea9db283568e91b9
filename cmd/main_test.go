package main

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/okian/vigil/internal/adapters/http/api"
	app "github.com/okian/vigil/internal/app"
	"github.com/okian/vigil/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestMainWiring(t *testing.T) {
	convey.Convey("Given the main application", t, func() {
		convey.Convey("When testing configuration loading", func() {
			_ = os.Setenv("VIGIL_ADDR", ":8080")
			_ = os.Setenv("VIGIL_POLL_BATCH_SIZE", "10")
			defer func() {
				_ = os.Unsetenv("VIGIL_ADDR")
				_ = os.Unsetenv("VIGIL_POLL_BATCH_SIZE")
			}()

			convey.Convey("Then configuration should be loadable", func() {
				ctx := context.Background()
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.PollBatchSize, convey.ShouldEqual, 10)
			})
		})

		convey.Convey("When testing service creation", func() {
			convey.Convey("Then service should be creatable with default options", func() {
				svc := app.New()
				convey.So(svc, convey.ShouldNotBeNil)
			})

			convey.Convey("And service should be creatable with custom options", func() {
				svc := app.New(
					app.WithInMemoryStore(),
					app.WithPollInterval(time.Minute),
					app.WithPollBatchSize(10),
				)
				convey.So(svc, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When testing HTTP server creation", func() {
			svc := app.New(app.WithInMemoryStore())
			srv := &http.Server{
				Addr:              ":0",
				Handler:           api.NewServer(svc).Router(),
				ReadHeaderTimeout: readHeaderTimeout,
			}

			convey.Convey("Then the server should carry the configured handler", func() {
				convey.So(srv.Handler, convey.ShouldNotBeNil)
			})
		})
	})
}
