package pipeline_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/enh8/e8sim/emu"
	"github.com/enh8/e8sim/insts"
	"github.com/enh8/e8sim/timing/cache"
	"github.com/enh8/e8sim/timing/latency"
	"github.com/enh8/e8sim/timing/pipeline"
)

// runToHalt ticks until the pipeline halts or maxCycles pass.
func runToHalt(pipe *pipeline.Pipeline, maxCycles int) error {
	for i := 0; i < maxCycles && !pipe.Halted(); i++ {
		if err := pipe.Tick(); err != nil {
			return err
		}
	}
	return nil
}

var _ = Describe("Pipeline", func() {
	var (
		regFile *emu.RegFile
		memory  *emu.Memory
	)

	BeforeEach(func() {
		regFile = &emu.RegFile{}
		memory = emu.NewMemory()
	})

	newPipeline := func(words []uint16, opts ...pipeline.Option) *pipeline.Pipeline {
		pipe, err := pipeline.NewPipeline(
			regFile, memory, emu.NewProgram(words), opts...)
		Expect(err).NotTo(HaveOccurred())
		return pipe
	}

	Describe("basic execution", func() {
		It("should execute a straight-line program in fill plus retire time", func() {
			pipe := newPipeline([]uint16{
				insts.EncodeLOADI(1, 5),
				insts.EncodeLOADI(2, 10),
				insts.EncodeALU(insts.OpADD, 3, 1, 2),
				insts.EncodeHALT(),
			})

			Expect(runToHalt(pipe, 50)).To(Succeed())

			Expect(pipe.Halted()).To(BeTrue())
			Expect(regFile.ReadReg(3)).To(Equal(uint8(15)))

			stats := pipe.Stats()
			Expect(stats.Instructions).To(Equal(uint64(4)))
			Expect(stats.Cycles).To(Equal(uint64(8)))
			Expect(stats.Stalls).To(Equal(uint64(0)))
			Expect(stats.MemStalls).To(Equal(uint64(0)))
			Expect(stats.FetchStalls).To(Equal(uint64(0)))
		})

		It("should commit flags at writeback", func() {
			pipe := newPipeline([]uint16{
				insts.EncodeLOADI(1, 5),
				insts.EncodeCMP(1, 1),
				insts.EncodeHALT(),
			})

			Expect(runToHalt(pipe, 50)).To(Succeed())
			Expect(regFile.Flags.Z).To(BeTrue())
			Expect(regFile.Flags.C).To(BeTrue())
		})

		It("should run loads and stores through memory", func() {
			pipe := newPipeline([]uint16{
				insts.EncodeLOADI(1, 42),
				insts.EncodeSTORE(1, 0x20),
				insts.EncodeLOAD(2, 0x20),
				insts.EncodeHALT(),
			})

			Expect(runToHalt(pipe, 50)).To(Succeed())

			Expect(memory.Read8(0x20)).To(Equal(uint8(42)))
			Expect(regFile.ReadReg(2)).To(Equal(uint8(42)))
		})

		It("should drain bubbles when fetch runs past the image end", func() {
			// No HALT: the pipeline keeps ticking but retires nothing
			// new once the image is exhausted.
			pipe := newPipeline([]uint16{
				insts.EncodeLOADI(1, 1),
				insts.EncodeLOADI(2, 2),
			})

			for i := 0; i < 20; i++ {
				Expect(pipe.Tick()).To(Succeed())
			}

			Expect(pipe.Halted()).To(BeFalse())
			Expect(pipe.Stats().Instructions).To(Equal(uint64(2)))
			Expect(pipe.InFlight()).To(BeFalse())
			Expect(regFile.ReadReg(2)).To(Equal(uint8(2)))
		})
	})

	Describe("data hazards", func() {
		It("should forward from EX/MEM in preference to MEM/WB", func() {
			pipe := newPipeline([]uint16{
				insts.EncodeLOADI(1, 1),
				insts.EncodeLOADI(1, 2),
				insts.EncodeALU(insts.OpADD, 2, 1, 1),
				insts.EncodeHALT(),
			})

			Expect(runToHalt(pipe, 50)).To(Succeed())

			// The newer LOADI value is in EX/MEM when the ADD executes.
			Expect(regFile.ReadReg(2)).To(Equal(uint8(4)))
			Expect(pipe.Stats().Stalls).To(Equal(uint64(0)))
		})

		It("should stall exactly one cycle on a load-use hazard", func() {
			memory.Seed(0x10, []byte{7})
			pipe := newPipeline([]uint16{
				insts.EncodeLOAD(1, 0x10),
				insts.EncodeALU(insts.OpADD, 2, 1, 1),
				insts.EncodeHALT(),
			})

			Expect(runToHalt(pipe, 50)).To(Succeed())

			Expect(regFile.ReadReg(2)).To(Equal(uint8(14)))
			stats := pipe.Stats()
			Expect(stats.Stalls).To(Equal(uint64(1)))
			Expect(stats.Instructions).To(Equal(uint64(3)))
			Expect(stats.Cycles).To(Equal(uint64(8)))
		})

		It("should not stall when the load result is unused", func() {
			memory.Seed(0x10, []byte{7})
			pipe := newPipeline([]uint16{
				insts.EncodeLOAD(1, 0x10),
				insts.EncodeLOADI(2, 3),
				insts.EncodeHALT(),
			})

			Expect(runToHalt(pipe, 50)).To(Succeed())
			Expect(pipe.Stats().Stalls).To(Equal(uint64(0)))
		})

		It("should forward the stored value to a store after its producer", func() {
			pipe := newPipeline([]uint16{
				insts.EncodeLOADI(1, 9),
				insts.EncodeSTORE(1, 0x08),
				insts.EncodeHALT(),
			})

			Expect(runToHalt(pipe, 50)).To(Succeed())
			Expect(memory.Read8(0x08)).To(Equal(uint8(9)))
		})
	})

	Describe("branches", func() {
		It("should flush the two younger stages on a misprediction", func() {
			pipe := newPipeline([]uint16{
				insts.EncodeLOADI(1, 1),
				insts.EncodeCondJump(insts.OpJNZ, 1, 4),
				insts.EncodeLOADI(2, 99), // speculative, must not retire
				insts.EncodeLOADI(3, 99), // speculative, must not retire
				insts.EncodeHALT(),
			})

			Expect(runToHalt(pipe, 50)).To(Succeed())

			Expect(regFile.ReadReg(2)).To(Equal(uint8(0)))
			Expect(regFile.ReadReg(3)).To(Equal(uint8(0)))

			stats := pipe.Stats()
			Expect(stats.Instructions).To(Equal(uint64(3)))
			Expect(stats.Branches).To(Equal(uint64(1)))
			Expect(stats.BranchMispredicts).To(Equal(uint64(1)))
			Expect(stats.Flushes).To(Equal(uint64(1)))
		})

		It("should redirect fetch the cycle after resolution", func() {
			pipe := newPipeline([]uint16{
				insts.EncodeJUMP(3),
				insts.EncodeLOADI(1, 99),
				insts.EncodeLOADI(2, 99),
				insts.EncodeHALT(),
			})

			// JUMP resolves in EX on cycle 3; the flush redirects the PC
			// in the same cycle and cycle 4 fetches the target.
			for i := 0; i < 3; i++ {
				Expect(pipe.Tick()).To(Succeed())
			}
			Expect(pipe.PC()).To(Equal(uint64(3)))
			Expect(pipe.GetIFID().Valid).To(BeFalse())
			Expect(pipe.GetIDEX().Valid).To(BeFalse())

			Expect(pipe.Tick()).To(Succeed())
			Expect(pipe.GetIFID().Valid).To(BeTrue())
			Expect(pipe.GetIFID().PC).To(Equal(uint64(3)))
		})

		It("should learn a repeating branch", func() {
			// R1 counts 3, 2, 1, 0; JNZ loops back twice, then falls
			// through.
			pipe := newPipeline([]uint16{
				insts.EncodeLOADI(1, 3),
				insts.EncodeLOADI(2, 1),
				insts.EncodeALU(insts.OpSUB, 1, 1, 2),
				insts.EncodeCondJump(insts.OpJNZ, 1, 2),
				insts.EncodeHALT(),
			})

			Expect(runToHalt(pipe, 200)).To(Succeed())

			Expect(regFile.ReadReg(1)).To(Equal(uint8(0)))

			stats := pipe.Stats()
			Expect(stats.Branches).To(Equal(uint64(3)))
			// First taken resolution mispredicts (cold entry predicts
			// not taken); the second is predicted correctly; the final
			// not-taken resolution mispredicts again.
			Expect(stats.BranchMispredicts).To(Equal(uint64(2)))
			Expect(stats.Flushes).To(Equal(uint64(2)))
		})

		It("should not flush a correctly predicted not-taken branch", func() {
			pipe := newPipeline([]uint16{
				insts.EncodeLOADI(1, 0),
				insts.EncodeCondJump(insts.OpJNZ, 1, 0),
				insts.EncodeHALT(),
			})

			Expect(runToHalt(pipe, 50)).To(Succeed())

			stats := pipe.Stats()
			Expect(stats.Branches).To(Equal(uint64(1)))
			Expect(stats.BranchMispredicts).To(Equal(uint64(0)))
			Expect(stats.Flushes).To(Equal(uint64(0)))
		})

		It("should fail fatally on a taken branch outside the image", func() {
			pipe := newPipeline([]uint16{
				insts.EncodeJUMP(10),
				insts.EncodeHALT(),
			})

			err := runToHalt(pipe, 50)

			var accessErr *emu.AccessError
			Expect(err).To(HaveOccurred())
			Expect(errors.As(err, &accessErr)).To(BeTrue())
			Expect(accessErr.Space).To(Equal("instruction"))
			Expect(accessErr.Addr).To(Equal(uint64(10)))
			Expect(accessErr.Cycle).To(Equal(uint64(3)))
			Expect(pipe.Halted()).To(BeTrue())
		})
	})

	Describe("multi-cycle operations", func() {
		It("should stall execute for the multiply latency", func() {
			pipe := newPipeline([]uint16{
				insts.EncodeLOADI(1, 6),
				insts.EncodeLOADI(2, 7),
				insts.EncodeReg2(insts.OpMUL, 1, 2),
				insts.EncodeHALT(),
			})

			Expect(runToHalt(pipe, 50)).To(Succeed())

			Expect(regFile.ReadReg(1)).To(Equal(uint8(42)))
			stats := pipe.Stats()
			Expect(stats.ExecStalls).To(Equal(uint64(3))) // latency 4
			Expect(stats.Instructions).To(Equal(uint64(4)))
		})

		It("should honor a custom latency table", func() {
			config := latency.DefaultTimingConfig()
			config.MultiplyLatency = 2
			pipe := newPipeline([]uint16{
				insts.EncodeLOADI(1, 3),
				insts.EncodeLOADI(2, 3),
				insts.EncodeReg2(insts.OpMUL, 1, 2),
				insts.EncodeHALT(),
			}, pipeline.WithLatencyTable(latency.NewTableWithConfig(config)))

			Expect(runToHalt(pipe, 50)).To(Succeed())

			Expect(regFile.ReadReg(1)).To(Equal(uint8(9)))
			Expect(pipe.Stats().ExecStalls).To(Equal(uint64(1)))
		})

		It("should retire a divide-by-zero as a counted fault", func() {
			pipe := newPipeline([]uint16{
				insts.EncodeLOADI(1, 5),
				insts.EncodeLOADI(2, 0),
				insts.EncodeReg2(insts.OpDIV, 1, 2),
				insts.EncodeHALT(),
			})

			Expect(runToHalt(pipe, 100)).To(Succeed())

			Expect(pipe.Halted()).To(BeTrue())
			Expect(regFile.Flags.Fault).To(BeTrue())
			Expect(pipe.Stats().ArithmeticErrors).To(Equal(uint64(1)))
			// The destination register keeps its pre-fault value.
			Expect(regFile.ReadReg(1)).To(Equal(uint8(5)))
		})

		It("should keep the fault flag sticky across later instructions", func() {
			pipe := newPipeline([]uint16{
				insts.EncodeLOADI(1, 5),
				insts.EncodeLOADI(2, 0),
				insts.EncodeReg2(insts.OpDIV, 1, 2),
				insts.EncodeALU(insts.OpADD, 3, 1, 1),
				insts.EncodeHALT(),
			})

			Expect(runToHalt(pipe, 100)).To(Succeed())

			Expect(regFile.ReadReg(3)).To(Equal(uint8(10)))
			Expect(regFile.Flags.Fault).To(BeTrue())
		})

		It("should compute floating-point results through the FP unit", func() {
			// 2.0 (0x40) + 2.0 = 4.0 (0x48)
			pipe := newPipeline([]uint16{
				insts.EncodeLOADI(1, 0x20),
				insts.EncodeReg2(insts.OpSHL, 1, 1), // 0x40
				insts.EncodeReg2(insts.OpMOV, 2, 1),
				insts.EncodeReg2(insts.OpFADD, 1, 2),
				insts.EncodeHALT(),
			})

			Expect(runToHalt(pipe, 100)).To(Succeed())

			Expect(regFile.ReadReg(1)).To(Equal(uint8(0x48)))
			Expect(regFile.Flags.Fault).To(BeFalse())
		})
	})

	Describe("error handling", func() {
		It("should retire undefined encodings as counted no-ops", func() {
			pipe := newPipeline([]uint16{
				insts.EncodeLOADI(1, 5),
				0xF03F, // undefined extended function
				insts.EncodeALU(insts.OpADD, 2, 1, 1),
				insts.EncodeHALT(),
			})

			Expect(runToHalt(pipe, 50)).To(Succeed())

			Expect(regFile.ReadReg(2)).To(Equal(uint8(10)))
			stats := pipe.Stats()
			Expect(stats.EncodingErrors).To(Equal(uint64(1)))
			Expect(stats.Instructions).To(Equal(uint64(4)))
		})

		It("should fail fatally on an out-of-range data address", func() {
			smallMemory := emu.NewMemorySized(16)
			pipe, err := pipeline.NewPipeline(
				regFile, smallMemory, emu.NewProgram([]uint16{
					insts.EncodeLOADI(1, 5),
					insts.EncodeSTORE(1, 0x20),
					insts.EncodeHALT(),
				}))
			Expect(err).NotTo(HaveOccurred())

			runErr := runToHalt(pipe, 50)

			var accessErr *emu.AccessError
			Expect(runErr).To(HaveOccurred())
			Expect(errors.As(runErr, &accessErr)).To(BeTrue())
			Expect(accessErr.Space).To(Equal("data"))
			Expect(accessErr.Addr).To(Equal(uint64(0x20)))
			Expect(accessErr.Cycle).To(Equal(uint64(5)))
			Expect(smallMemory.Read8(0)).To(Equal(uint8(0)))
		})
	})

	Describe("configuration", func() {
		It("should reject an invalid cache configuration", func() {
			config := cache.DefaultDCacheConfig()
			config.BlockSize = 3

			_, err := pipeline.NewPipeline(
				regFile, memory, emu.NewProgram(nil),
				pipeline.WithDCache(config))
			Expect(err).To(HaveOccurred())
		})

		It("should reject an instruction cache block smaller than a word", func() {
			config := cache.DefaultICacheConfig()
			config.BlockSize = 1

			_, err := pipeline.NewPipeline(
				regFile, memory, emu.NewProgram(nil),
				pipeline.WithICache(config))
			Expect(err).To(MatchError(ContainSubstring("block size")))
		})

		It("should reject an invalid predictor configuration", func() {
			_, err := pipeline.NewPipeline(
				regFile, memory, emu.NewProgram(nil),
				pipeline.WithBranchPredictor(pipeline.PredictorConfig{TableSize: 3}))
			Expect(err).To(HaveOccurred())
		})

		It("should reject an invalid latency table", func() {
			config := latency.DefaultTimingConfig()
			config.FPAddLatency = 0

			_, err := pipeline.NewPipeline(
				regFile, memory, emu.NewProgram(nil),
				pipeline.WithLatencyTable(latency.NewTableWithConfig(config)))
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("caches", func() {
		It("should stall fetch on instruction cache misses and still compute", func() {
			pipe := newPipeline([]uint16{
				insts.EncodeLOADI(1, 5),
				insts.EncodeLOADI(2, 10),
				insts.EncodeALU(insts.OpADD, 3, 1, 2),
				insts.EncodeHALT(),
			}, pipeline.WithICache(cache.DefaultICacheConfig()))

			Expect(runToHalt(pipe, 100)).To(Succeed())

			Expect(regFile.ReadReg(3)).To(Equal(uint8(15)))
			Expect(pipe.Stats().FetchStalls).To(BeNumerically(">", 0))

			stats := pipe.ICache().Stats()
			// Two words per line: every other fetch hits.
			Expect(stats.Misses).To(Equal(uint64(2)))
			Expect(stats.Hits).To(Equal(uint64(2)))
		})

		It("should stall memory on data cache misses", func() {
			memory.Seed(0x10, []byte{7})
			pipe := newPipeline([]uint16{
				insts.EncodeLOAD(1, 0x10),
				insts.EncodeLOAD(2, 0x10),
				insts.EncodeHALT(),
			}, pipeline.WithDCache(cache.DefaultDCacheConfig()))

			Expect(runToHalt(pipe, 100)).To(Succeed())

			Expect(regFile.ReadReg(1)).To(Equal(uint8(7)))
			Expect(regFile.ReadReg(2)).To(Equal(uint8(7)))

			stats := pipe.DCache().Stats()
			Expect(stats.Misses).To(Equal(uint64(1)))
			Expect(stats.Hits).To(Equal(uint64(1)))
			Expect(pipe.Stats().MemStalls).To(BeNumerically(">", 0))
		})

		It("should refetch a flushed miss without leftover stall cycles", func() {
			// One instruction word per line. The first taken branch
			// flushes fetch while the word past the loop is still
			// missing; when the loop exits, that address is fetched
			// again and must hit the already-installed line.
			config := cache.Config{
				Size:          16,
				Associativity: 1,
				BlockSize:     2,
				HitLatency:    1,
				MissLatency:   3,
			}
			pipe := newPipeline([]uint16{
				insts.EncodeLOADI(1, 2),
				insts.EncodeLOADI(2, 1),
				insts.EncodeALU(insts.OpSUB, 1, 1, 2),
				insts.EncodeCondJump(insts.OpJNZ, 1, 2),
				insts.EncodeHALT(),
			}, pipeline.WithICache(config))

			Expect(runToHalt(pipe, 200)).To(Succeed())

			Expect(regFile.ReadReg(1)).To(Equal(uint8(0)))

			stats := pipe.Stats()
			Expect(stats.Instructions).To(Equal(uint64(7)))
			Expect(stats.Cycles).To(Equal(uint64(23)))

			// Five cold misses; every refetch after a flush hits.
			cacheStats := pipe.ICache().Stats()
			Expect(cacheStats.Misses).To(Equal(uint64(5)))
			Expect(cacheStats.Hits).To(Equal(uint64(4)))
		})

		It("should write back dirty lines exactly once on eviction", func() {
			config := cache.Config{
				Size:          16,
				Associativity: 1,
				BlockSize:     4,
				HitLatency:    1,
				MissLatency:   4,
				Policy:        cache.WriteBack,
			}
			// 4 sets; addresses 0x00 and 0x10 conflict.
			pipe := newPipeline([]uint16{
				insts.EncodeLOADI(1, 42),
				insts.EncodeSTORE(1, 0x00),
				insts.EncodeLOAD(2, 0x10), // evicts the dirty line
				insts.EncodeHALT(),
			}, pipeline.WithDCache(config))

			Expect(runToHalt(pipe, 100)).To(Succeed())

			Expect(memory.Read8(0x00)).To(Equal(uint8(42)))
			Expect(pipe.DCache().Stats().Writebacks).To(Equal(uint64(1)))
		})
	})

	Describe("Reset", func() {
		It("should allow a clean re-run", func() {
			words := []uint16{
				insts.EncodeLOADI(1, 5),
				insts.EncodeLOADI(2, 10),
				insts.EncodeALU(insts.OpADD, 3, 1, 2),
				insts.EncodeHALT(),
			}
			pipe := newPipeline(words)

			Expect(runToHalt(pipe, 50)).To(Succeed())
			firstCycles := pipe.Stats().Cycles

			pipe.Reset()
			regFile.Reset()
			memory.Reset()

			Expect(pipe.Halted()).To(BeFalse())
			Expect(runToHalt(pipe, 50)).To(Succeed())
			Expect(pipe.Stats().Cycles).To(Equal(firstCycles))
			Expect(regFile.ReadReg(3)).To(Equal(uint8(15)))
		})
	})
})
