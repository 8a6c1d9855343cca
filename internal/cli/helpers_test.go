package cli

import (
	"errors"

	api "github.com/micheleDibi/StyleForge-sub000/api/v1alpha1"
	"github.com/micheleDibi/StyleForge-sub000/internal/jobs"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("parseJobArg", func() {
	DescribeTable("accepts",
		func(arg string, family api.JobFamily, id string) {
			gotFamily, gotID, err := parseJobArg(arg)
			Expect(err).To(BeNil())
			Expect(gotFamily).To(Equal(family))
			Expect(gotID).To(Equal(id))
		},
		Entry("family and id", "training/abc", api.JobFamilyTraining, "abc"),
		Entry("plural alias", "scans/s1", api.JobFamilyScan, "s1"),
		Entry("bare id", "abc", api.JobFamilyGeneric, "abc"),
	)

	It("rejects an unknown family", func() {
		_, _, err := parseJobArg("video/abc")
		var unknown *jobs.ErrUnknownFamily
		Expect(errors.As(err, &unknown)).To(BeTrue())
	})

	DescribeTable("rejects bad ids",
		func(arg string) {
			_, _, err := parseJobArg(arg)
			Expect(err).To(MatchError(ContainSubstring("invalid job id")))
		},
		Entry("empty", "training/"),
		Entry("nested", "training/a/b"),
	)
})
