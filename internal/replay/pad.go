// ABOUTME: Programme associated data schedule
// ABOUTME: Emits dynamic labels and slideshow objects at fixed audio positions
package replay

import (
	"time"

	"github.com/dabdump/dabdump/internal/dab"
)

type padSchedule struct {
	labels        []string
	labelInterval time.Duration
	nextLabel     int
	nextLabelAt   time.Duration

	slides        []SlideSpec
	slideInterval time.Duration
	nextSlide     int
	nextSlideAt   time.Duration
}

func newPADSchedule(spec ServiceSpec) *padSchedule {
	return &padSchedule{
		labels:        spec.Labels,
		labelInterval: spec.LabelInterval,
		slides:        spec.Slides,
		slideInterval: spec.SlideInterval,
	}
}

// emit delivers every label and slide due at position. Both lists cycle.
func (p *padSchedule) emit(position time.Duration, h dab.ProgrammeHandler, read func(string) ([]byte, error), controller dab.ControllerHandler) {
	for len(p.labels) > 0 && position >= p.nextLabelAt {
		h.OnDynamicLabel(p.labels[p.nextLabel%len(p.labels)])
		p.nextLabel++
		p.nextLabelAt += p.labelInterval
	}

	for len(p.slides) > 0 && position >= p.nextSlideAt {
		slide := p.slides[p.nextSlide%len(p.slides)]
		p.nextSlide++
		p.nextSlideAt += p.slideInterval

		data, err := read(slide.File)
		if err != nil {
			controller.OnMessage(dab.LevelError, "Replay: ", err.Error())
			continue
		}
		h.OnMOT(dab.MOTFile{
			Data:            data,
			ContentSubType:  slideSubType(slide.File),
			ContentName:     slide.ContentName,
			ClickThroughURL: slide.ClickThrough,
			CategoryTitle:   slide.CategoryTitle,
		})
	}
}
