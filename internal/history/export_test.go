package history

import (
	"bytes"
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gopkg.in/yaml.v3"

	"github.com/zombor/walkingpad-tracker/internal/reading"
)

var _ = Describe("Export", func() {
	var (
		entries []reading.CapturedReading
		buf     bytes.Buffer
		format  string
		err     error
	)

	BeforeEach(func() {
		buf.Reset()
		entries = []reading.CapturedReading{readingAt(2), readingAt(1)}
	})

	JustBeforeEach(func() {
		err = Export(&buf, entries, format)
	})

	When("format is json", func() {
		BeforeEach(func() {
			format = FormatJSON
		})

		It("should write every entry in order", func() {
			Expect(err).NotTo(HaveOccurred())
			var rows []ExportRow
			Expect(json.Unmarshal(buf.Bytes(), &rows)).To(Succeed())
			Expect(rows).To(HaveLen(2))
			Expect(rows[0].Steps).To(Equal("2"))
			Expect(rows[0].CapturedAt).To(Equal("2023-11-14T22:13:22Z"))
		})
	})

	When("format is yaml", func() {
		BeforeEach(func() {
			format = FormatYAML
		})

		It("should write decodable yaml", func() {
			Expect(err).NotTo(HaveOccurred())
			var rows []ExportRow
			Expect(yaml.Unmarshal(buf.Bytes(), &rows)).To(Succeed())
			Expect(rows).To(HaveLen(2))
			Expect(rows[1].Steps).To(Equal("1"))
			Expect(rows[1].Calories).To(Equal(reading.Sentinel))
		})
	})

	When("format is parquet", func() {
		BeforeEach(func() {
			format = FormatParquet
		})

		It("should write a parquet file", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(buf.Bytes()[:4]).To(Equal([]byte("PAR1")))
		})
	})

	When("format is unknown", func() {
		BeforeEach(func() {
			format = "xml"
		})

		It("should return an error", func() {
			Expect(err).To(MatchError(ContainSubstring("unsupported export format")))
		})
	})
})
