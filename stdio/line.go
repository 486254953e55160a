package stdio

import (
	"bufio"
	"errors"
)

var errLineTooLong = errors.New("line exceeds limit")

// readLine returns the next line without its terminator. A line longer than
// limit is consumed and discarded, and errLineTooLong is returned in its place.
// The final line may lack a terminator; it is returned together with io.EOF.
func readLine(br *bufio.Reader, limit int64) ([]byte, error) {
	var (
		buf      []byte
		overflow bool
	)
	for {
		chunk, err := br.ReadSlice('\n')
		if !overflow {
			if int64(len(buf)+len(chunk)) > limit+1 {
				overflow = true
				buf = nil
			} else {
				buf = append(buf, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if overflow {
			if err != nil {
				return nil, err
			}
			return nil, errLineTooLong
		}
		n := len(buf)
		if n > 0 && buf[n-1] == '\n' {
			n--
			if n > 0 && buf[n-1] == '\r' {
				n--
			}
		}
		return buf[:n], err
	}
}
