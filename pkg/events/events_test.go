package events

import (
	"encoding/base64"
	"testing"

	"github.com/DasSecurity-HatLab/roundworm/pkg/models"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestEvents(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Events Suite")
}

var _ = Describe("Encoder", func() {
	It("should encode a file record as one line", func() {
		line, err := File(FileData{
			Path:    "/tmp/probe/x.txt",
			Mode:    0o100644,
			Event:   8,
			Size:    10,
			Content: base64.StdEncoding.EncodeToString([]byte("hello1234\n")),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(line).To(HaveSuffix("\n"))
		Expect(string(line[:len(line)-1])).NotTo(ContainSubstring("\n"))
		Expect(line[:len(line)-1]).To(MatchJSON(`{"type":"file","data":{"path":"/tmp/probe/x.txt","mode":33188,"event":8,"size":10,"content":"aGVsbG8xMjM0Cg=="}}`))
	})

	It("should encode a new_process record", func() {
		info := &models.ProcessInfo{
			PID: 77, PPID: 1, Name: "sh", Cmd: "/bin/sh", Param: "-c id ",
			User: models.UserRecord{UID: 0, GID: 0, Username: "root"},
		}
		line, err := NewProcess(NewProcessFromInfo(info))
		Expect(err).NotTo(HaveOccurred())
		Expect(line[:len(line)-1]).To(MatchJSON(`{"type":"new_process","data":{"pid":77,"ppid":1,"uid":0,"username":"root","cmd":"/bin/sh","param":"-c id "}}`))
	})

	It("should escape characters the collector would otherwise choke on", func() {
		line, err := NewProcess(NewProcessData{Cmd: `echo "pwned"`, Param: "a\\b\n"})
		Expect(err).NotTo(HaveOccurred())
		Expect(line[:len(line)-1]).To(MatchJSON(`{"type":"new_process","data":{"pid":0,"ppid":0,"uid":0,"username":"","cmd":"echo \"pwned\"","param":"a\\b\n"}}`))
	})

	It("should encode a pid_list record preserving order", func() {
		line, err := PidList([]uint32{50, 1, 2, 77})
		Expect(err).NotTo(HaveOccurred())
		Expect(line[:len(line)-1]).To(MatchJSON(`{"type":"pid_list","data":[50,1,2,77]}`))
	})

	It("should encode an empty pid_list as an empty array", func() {
		line, err := PidList(nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(line[:len(line)-1]).To(MatchJSON(`{"type":"pid_list","data":[]}`))
	})

	It("should refuse the relay's reserved type", func() {
		_, err := Encode(TypePwn, map[string]string{})
		Expect(err).To(MatchError(ContainSubstring("reserved")))
	})

	It("should report payloads that cannot be marshalled", func() {
		_, err := Encode(TypeFile, make(chan int))
		Expect(err).To(HaveOccurred())
	})
})
