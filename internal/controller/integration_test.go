package controller

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/walkingpad-tracker/internal/api"
	"github.com/zombor/walkingpad-tracker/internal/backend"
	"github.com/zombor/walkingpad-tracker/internal/camera"
	"github.com/zombor/walkingpad-tracker/internal/history"
	"github.com/zombor/walkingpad-tracker/internal/scanning"
	"github.com/zombor/walkingpad-tracker/internal/status"
	"github.com/zombor/walkingpad-tracker/internal/storage"
)

// recordingAnalyzer keeps the image it was asked about and answers with a
// fixed text
type recordingAnalyzer struct {
	answer string
	image  scanning.Image
}

func (f *recordingAnalyzer) Analyze(ctx context.Context, img scanning.Image) (string, error) {
	f.image = img
	return f.answer, nil
}

func (f *recordingAnalyzer) Close() error {
	return nil
}

var _ = Describe("Integration", func() {
	var (
		tempDir    string
		ghServer   *ghttp.Server
		analyzer   *recordingAnalyzer
		kv         *history.BoltKV
		store      *history.Store
		controller *Controller
		ctx        context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		tempDir = GinkgoT().TempDir()

		ghServer = ghttp.NewServer()
		blobs, err := storage.NewLocalStorage(filepath.Join(tempDir, "captures"), ghServer.URL())
		Expect(err).NotTo(HaveOccurred())

		analyzer = &recordingAnalyzer{answer: `{"calories": "1234", "speed": "5.6", "steps": "2345"}`}
		server := api.NewServer(api.NewService(blobs, blobs, analyzer))
		anyPath := regexp.MustCompile(".*")
		ghServer.RouteToHandler("GET", anyPath, server.ServeHTTP)
		ghServer.RouteToHandler("POST", anyPath, server.ServeHTTP)

		kv, err = history.NewBoltKV(filepath.Join(tempDir, "session.db"))
		Expect(err).NotTo(HaveOccurred())
		store = history.NewStore(kv)
		Expect(store.Load()).To(Succeed())

		framePath := filepath.Join(tempDir, "frame.png")
		Expect(os.WriteFile(framePath, encodePNG(), 0644)).To(Succeed())

		client := backend.New(ghServer.URL(), 0)
		controller = New(Config{
			Camera:   camera.NewFileCamera(framePath),
			Uploader: client,
			Analyzer: client,
			History:  store,
			Reporter: status.NewReporter(store.Stats()),
		})
	})

	AfterEach(func() {
		controller.Close()
		ghServer.Close()
		kv.Close()
	})

	It("should upload, analyze and persist a reading", func() {
		Expect(controller.StartCamera(ctx)).To(Succeed())
		Expect(controller.CaptureFrame(ctx)).To(Succeed())

		// the stored capture was read back from disk for the analyzer
		Expect(analyzer.image.URL).To(HavePrefix(ghServer.URL() + "/captures/capture_"))
		Expect(analyzer.image.Data).To(HavePrefix("\x89PNG"))
		matches, err := filepath.Glob(filepath.Join(tempDir, "captures", "capture_*.png"))
		Expect(err).NotTo(HaveOccurred())
		Expect(matches).To(HaveLen(1))

		entries := store.Entries()
		Expect(entries).To(HaveLen(1))
		Expect(entries[0].Calories).To(Equal("1234"))
		Expect(entries[0].Time).To(Equal("--"))

		// a fresh store over the same file sees the same session
		reloaded := history.NewStore(kv)
		Expect(reloaded.Load()).To(Succeed())
		Expect(reloaded.Entries()).To(HaveLen(1))
		Expect(reloaded.Entries()[0].Fields).To(Equal(entries[0].Fields))
		Expect(reloaded.Entries()[0].CapturedAt.UnixMilli()).To(Equal(entries[0].CapturedAt.UnixMilli()))
		Expect(reloaded.Stats()).To(Equal(history.Stats{TotalCaptures: 1, SuccessfulCaptures: 1}))
	})

	It("should count a prose answer as an unsuccessful attempt", func() {
		analyzer.answer = "I see a treadmill."
		Expect(controller.HandleManualUpload(ctx, encodePNG(), "image/png")).To(MatchError(ContainSubstring("parsing response")))

		reloaded := history.NewStore(kv)
		Expect(reloaded.Load()).To(Succeed())
		Expect(reloaded.Stats()).To(Equal(history.Stats{TotalCaptures: 1}))
		Expect(reloaded.Entries()).To(BeEmpty())
	})

	It("should treat an empty answer as a failed analysis", func() {
		analyzer.answer = ""
		err := controller.HandleManualUpload(ctx, encodePNG(), "image/png")

		var transportErr *TransportError
		Expect(errors.As(err, &transportErr)).To(BeTrue())
		Expect(transportErr.Op).To(Equal("analyze"))
		Expect(err).To(MatchError(backend.ErrEmptyAnalysis))

		reloaded := history.NewStore(kv)
		Expect(reloaded.Load()).To(Succeed())
		Expect(reloaded.Stats()).To(Equal(history.Stats{TotalCaptures: 1}))
	})
})
