package batch

import "github.com/artemshloyda/imgshrink/internal/codec"

// Sink получает прогресс и итог пакета.
// OnProgress вызывается из одной горутины с неубывающим completed.
// Ровно один из OnDone/OnCancelled вызывается на каждый успешно начатый запуск.
type Sink interface {
	OnProgress(completed, total int)
	OnDone(totalProcessed int)
	OnCancelled()
}

// ResultSink дополнительно получает результат каждого файла.
type ResultSink interface {
	OnResult(res codec.Result)
}

// FailureSink получает ошибку уровня пакета (например, ошибку обхода директории).
type FailureSink interface {
	OnFailed(err error)
}

// SinkFuncs собирает Sink из функций. Пустые поля игнорируются.
type SinkFuncs struct {
	Progress  func(completed, total int)
	Done      func(totalProcessed int)
	Cancelled func()
	Result    func(res codec.Result)
	Failed    func(err error)
}

func (s SinkFuncs) OnProgress(completed, total int) {
	if s.Progress != nil {
		s.Progress(completed, total)
	}
}

func (s SinkFuncs) OnDone(totalProcessed int) {
	if s.Done != nil {
		s.Done(totalProcessed)
	}
}

func (s SinkFuncs) OnCancelled() {
	if s.Cancelled != nil {
		s.Cancelled()
	}
}

func (s SinkFuncs) OnResult(res codec.Result) {
	if s.Result != nil {
		s.Result(res)
	}
}

func (s SinkFuncs) OnFailed(err error) {
	if s.Failed != nil {
		s.Failed(err)
	}
}

// multiSink рассылает события нескольким получателям.
type multiSink []Sink

// Multi объединяет несколько Sink в один.
func Multi(sinks ...Sink) Sink {
	var out multiSink
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (m multiSink) OnProgress(completed, total int) {
	for _, s := range m {
		s.OnProgress(completed, total)
	}
}

func (m multiSink) OnDone(totalProcessed int) {
	for _, s := range m {
		s.OnDone(totalProcessed)
	}
}

func (m multiSink) OnCancelled() {
	for _, s := range m {
		s.OnCancelled()
	}
}

func (m multiSink) OnResult(res codec.Result) {
	for _, s := range m {
		if rs, ok := s.(ResultSink); ok {
			rs.OnResult(res)
		}
	}
}

func (m multiSink) OnFailed(err error) {
	for _, s := range m {
		if fs, ok := s.(FailureSink); ok {
			fs.OnFailed(err)
		}
	}
}
