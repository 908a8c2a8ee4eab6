package console

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/walkingpad-tracker/internal/camera"
	"github.com/zombor/walkingpad-tracker/internal/controller"
	"github.com/zombor/walkingpad-tracker/internal/history"
	"github.com/zombor/walkingpad-tracker/internal/status"
)

// fakeBackend answers every upload and analysis with fixed values
type fakeBackend struct{}

func (fakeBackend) Upload(ctx context.Context, png []byte) (string, error) {
	return "http://blobs.test/captures/capture.png", nil
}

func (fakeBackend) Analyze(ctx context.Context, imageURL string) (string, error) {
	return `{"time": "23:48", "speed": "3.0", "distance": "1.1"}`, nil
}

// viewRecorder publishes the rendered view after every reporter change
type viewRecorder struct {
	Model
	views chan string
}

func (v viewRecorder) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	next, cmd := v.Model.Update(msg)
	v.Model = next.(Model)
	if _, ok := msg.(snapshotMsg); ok {
		v.views <- v.Model.View()
	}
	return v, cmd
}

var _ = Describe("Console with a live controller", func() {
	var (
		ctrl    *controller.Controller
		kv      *history.BoltKV
		program *tea.Program
		views   chan string
		done    chan error
	)

	BeforeEach(func() {
		dir := GinkgoT().TempDir()

		var buf bytes.Buffer
		Expect(png.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 6)))).To(Succeed())
		framePath := filepath.Join(dir, "frame.png")
		Expect(os.WriteFile(framePath, buf.Bytes(), 0644)).To(Succeed())

		var err error
		kv, err = history.NewBoltKV(filepath.Join(dir, "walkingpad.db"))
		Expect(err).NotTo(HaveOccurred())
		store := history.NewStore(kv)
		Expect(store.Load()).To(Succeed())
		reporter := status.NewReporter(store.Stats())

		ctrl = controller.New(controller.Config{
			Camera:   camera.NewFileCamera(framePath),
			Uploader: fakeBackend{},
			Analyzer: fakeBackend{},
			History:  store,
			Reporter: reporter,
		})

		views = make(chan string, 256)
		model := viewRecorder{
			Model: NewModel(context.Background(), ctrl, store, reporter.Snapshot()),
			views: views,
		}
		program = tea.NewProgram(model,
			tea.WithoutRenderer(),
			tea.WithInput(nil),
			tea.WithOutput(io.Discard),
			tea.WithoutSignalHandler(),
		)
		unsubscribe := subscribe(program, reporter)
		DeferCleanup(unsubscribe)

		done = make(chan error, 1)
		go func() {
			_, err := program.Run()
			done <- err
		}()
	})

	AfterEach(func() {
		program.Quit()
		Eventually(done, 2).Should(Receive(BeNil()))
		ctrl.Close()
		Expect(kv.Close()).To(Succeed())
	})

	It("should start the camera without blocking the update loop", func() {
		program.Send(keyPress("s"))

		Eventually(views, 2).Should(Receive(And(
			ContainSubstring("Camera started. Ready to capture."),
			ContainSubstring("Camera: on"),
		)))

		session := make(chan controller.Session, 1)
		go func() {
			session <- ctrl.Session()
		}()
		Eventually(session, 1).Should(Receive(Equal(controller.Session{Active: true})))
	})

	It("should show a captured reading", func() {
		program.Send(keyPress("s"))
		Eventually(views, 2).Should(Receive(ContainSubstring("Camera: on")))

		program.Send(keyPress("c"))
		Eventually(views, 2).Should(Receive(And(
			ContainSubstring("Captured: Time: 23:48"),
			ContainSubstring("Captures: 1"),
			ContainSubstring("Success: 100%"),
		)))
	})
})
